package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coresight/coresight/internal/models"
)

// --- Fleet overview ---

// ListEntityStatuses returns every entity with its status record and
// latest sample, ordered by name.
func (s *SQLiteStore) ListEntityStatuses(ctx context.Context) ([]models.EntityStatus, error) {
	const op = "store.ListEntityStatuses"
	rows, err := s.db.QueryContext(ctx, `SELECT e.id, e.name, e.address, e.monitor_type, e.config, e.created_at,
			r.status, r.last_checked, r.last_transition, r.uptime_seconds, r.last_downtime
		FROM entities e
		LEFT JOIN status_records r ON r.entity_id = e.id
		ORDER BY e.name, e.id`)
	if err != nil {
		return nil, classify(op, err)
	}

	var out []models.EntityStatus
	for rows.Next() {
		var (
			e                            models.Entity
			cfg                          string
			createdAt                    int64
			status                       sql.NullString
			lastChecked, uptime          sql.NullInt64
			lastTransition, lastDowntime sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Address, &e.MonitorType, &cfg, &createdAt,
			&status, &lastChecked, &lastTransition, &uptime, &lastDowntime); err != nil {
			rows.Close()
			return nil, classify(op, err)
		}
		if cfg != "" {
			if err := json.Unmarshal([]byte(cfg), &e.Config); err != nil {
				rows.Close()
				return nil, fmt.Errorf("parse config of entity %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = fromMillis(createdAt)

		row := models.EntityStatus{Entity: e}
		if status.Valid {
			row.Status = &models.StatusRecord{
				EntityID:       e.ID,
				Status:         status.String,
				LastChecked:    fromMillis(lastChecked.Int64),
				LastTransition: nullTime(lastTransition),
				UptimeSeconds:  uptime.Int64,
				LastDowntime:   nullTime(lastDowntime),
			}
		}
		out = append(out, row)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, classify(op, err)
	}

	for i := range out {
		latest, err := s.LatestSample(ctx, out[i].Entity.ID)
		if err != nil {
			return nil, err
		}
		out[i].Latest = latest
	}
	return out, nil
}

// --- Process tables ---

// ReplaceProcesses stores list as the entity's current process table,
// discarding whatever was there before.
func (s *SQLiteStore) ReplaceProcesses(ctx context.Context, list *models.ProcessList) error {
	const op = "store.ReplaceProcesses"
	if list.CapturedAt.IsZero() {
		list.CapturedAt = time.Now().UTC()
	}
	procs := list.Processes
	if procs == nil {
		procs = []models.ProcessReport{}
	}
	data, err := json.Marshal(procs)
	if err != nil {
		return fmt.Errorf("marshal processes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO process_lists (entity_id, captured_at, processes)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET captured_at = excluded.captured_at, processes = excluded.processes`,
		list.EntityID, toMillis(list.CapturedAt), string(data))
	if isForeignKeyViolation(err) {
		return unknownEntity(op, list.EntityID)
	}
	return classify(op, err)
}

// GetProcesses returns the entity's latest process table, or nil when the
// agent never reported one.
func (s *SQLiteStore) GetProcesses(ctx context.Context, entityID string) (*models.ProcessList, error) {
	var capturedAt int64
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT captured_at, processes FROM process_lists WHERE entity_id = ?`,
		entityID).Scan(&capturedAt, &data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("store.GetProcesses", err)
	}
	list := &models.ProcessList{EntityID: entityID, CapturedAt: fromMillis(capturedAt)}
	if err := json.Unmarshal([]byte(data), &list.Processes); err != nil {
		return nil, fmt.Errorf("parse processes of entity %s: %w", entityID, err)
	}
	return list, nil
}
