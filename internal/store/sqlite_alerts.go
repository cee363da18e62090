package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// --- Alerts ---

const alertColumns = `id, entity_id, type, severity, message, status, created_at, resolved_at, notified, notify_attempts`

func scanAlert(row interface{ Scan(...any) error }) (*models.Alert, error) {
	var a models.Alert
	var createdAt int64
	var resolvedAt sql.NullInt64
	if err := row.Scan(&a.ID, &a.EntityID, &a.Type, &a.Severity, &a.Message, &a.Status,
		&createdAt, &resolvedAt, &a.Notified, &a.NotifyAttempts); err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(createdAt)
	a.ResolvedAt = nullTime(resolvedAt)
	return &a, nil
}

func scanAlerts(rows *sql.Rows) ([]models.Alert, error) {
	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// InsertAlertIfAbsent stores a as a new active alert unless an active
// alert for the same (entity, type) was created at or after cooldownStart.
// On a duplicate it reports created=false and sets a.ID to the existing
// alert. The existence check and insert are a single statement.
func (s *SQLiteStore) InsertAlertIfAbsent(ctx context.Context, a *models.Alert, cooldownStart time.Time) (bool, error) {
	const op = "store.InsertAlertIfAbsent"
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Status = models.AlertActive

	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.db.ExecContext(ctx, `INSERT INTO alerts (entity_id, type, severity, message, status, created_at)
			SELECT ?, ?, ?, ?, 'active', ?
			WHERE NOT EXISTS (
				SELECT 1 FROM alerts
				WHERE entity_id = ? AND type = ? AND status = 'active' AND created_at >= ?
			)`,
			a.EntityID, a.Type, a.Severity, a.Message, toMillis(a.CreatedAt),
			a.EntityID, a.Type, toMillis(cooldownStart))
		if err != nil {
			if isForeignKeyViolation(err) {
				return false, unknownEntity(op, a.EntityID)
			}
			return false, classify(op, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			a.ID, _ = res.LastInsertId()
			return true, nil
		}

		var existing int64
		err = s.db.QueryRowContext(ctx, `SELECT id FROM alerts
			WHERE entity_id = ? AND type = ? AND status = 'active' AND created_at >= ?
			ORDER BY created_at DESC, id DESC LIMIT 1`,
			a.EntityID, a.Type, toMillis(cooldownStart)).Scan(&existing)
		if err == sql.ErrNoRows {
			// Resolved between the two statements; try the insert again.
			continue
		}
		if err != nil {
			return false, classify(op, err)
		}
		a.ID = existing
		return false, nil
	}
	return false, apperror.New(apperror.Conflict, op, fmt.Errorf("alert for %s/%s changed concurrently", a.EntityID, a.Type))
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("store.GetAlert", err)
	}
	return a, nil
}

// ResolveAlert moves an active alert to resolved. It reports false when
// the alert was already resolved or does not exist.
func (s *SQLiteStore) ResolveAlert(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET status = 'resolved', resolved_at = ?
		WHERE id = ? AND status = 'active'`, toMillis(at), id)
	if err != nil {
		return false, classify("store.ResolveAlert", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ResolveActiveAlerts resolves every active alert of alertType for
// entityID and returns the alerts it changed.
func (s *SQLiteStore) ResolveActiveAlerts(ctx context.Context, entityID, alertType string, at time.Time) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `UPDATE alerts SET status = 'resolved', resolved_at = ?
		WHERE entity_id = ? AND type = ? AND status = 'active'
		RETURNING `+alertColumns, toMillis(at), entityID, alertType)
	if err != nil {
		return nil, classify("store.ResolveActiveAlerts", err)
	}
	defer rows.Close()
	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, classify("store.ResolveActiveAlerts", err)
	}
	return alerts, nil
}

// ListActiveAlerts returns active alerts, most severe first and newest
// first within a severity. An empty entityID lists every entity.
func (s *SQLiteStore) ListActiveAlerts(ctx context.Context, entityID string, limit int) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE status = 'active'`
	var args []interface{}
	if entityID != "" {
		query += " AND entity_id = ?"
		args = append(args, entityID)
	}
	query += ` ORDER BY CASE severity
			WHEN 'critical' THEN 1
			WHEN 'high' THEN 2
			WHEN 'medium' THEN 3
			WHEN 'low' THEN 4
			ELSE 5 END,
		created_at DESC, id DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("store.ListActiveAlerts", err)
	}
	defer rows.Close()
	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, classify("store.ListActiveAlerts", err)
	}
	return alerts, nil
}

func (s *SQLiteStore) MarkAlertNotified(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE alerts SET notified = 1, notified_at = ? WHERE id = ?",
		toMillis(time.Now()), id)
	return classify("store.MarkAlertNotified", err)
}

// GetUnnotifiedAlerts returns undelivered alerts that are due for another
// attempt at now and have failed fewer than maxAttempts times. Alerts with
// the fewest failures come first so a stuck alert cannot starve new ones.
func (s *SQLiteStore) GetUnnotifiedAlerts(ctx context.Context, now time.Time, maxAttempts int) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE notified = 0 AND notify_attempts < ? AND next_attempt_at <= ?
		ORDER BY notify_attempts ASC, created_at ASC, id ASC LIMIT 100`,
		maxAttempts, toMillis(now))
	if err != nil {
		return nil, classify("store.GetUnnotifiedAlerts", err)
	}
	defer rows.Close()
	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, classify("store.GetUnnotifiedAlerts", err)
	}
	return alerts, nil
}

// RecordNotifyFailure counts a failed delivery round and holds the alert
// back from sweeps until retryAt.
func (s *SQLiteStore) RecordNotifyFailure(ctx context.Context, id int64, retryAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET notify_attempts = notify_attempts + 1, next_attempt_at = ?
		WHERE id = ?`, toMillis(retryAt), id)
	return classify("store.RecordNotifyFailure", err)
}

// RecordDelivery notes that providerID accepted alert id. Recording the
// same pair twice is a no-op.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, id, providerID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO alert_deliveries (alert_id, provider_id, delivered_at)
		VALUES (?, ?, ?)`, id, providerID, toMillis(time.Now()))
	if isForeignKeyViolation(err) {
		return apperror.New(apperror.NotFound, "store.RecordDelivery", err)
	}
	return classify("store.RecordDelivery", err)
}

// DeliveredProviders returns the IDs of providers that already accepted
// alert id.
func (s *SQLiteStore) DeliveredProviders(ctx context.Context, id int64) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT provider_id FROM alert_deliveries WHERE alert_id = ?`, id)
	if err != nil {
		return nil, classify("store.DeliveredProviders", err)
	}
	defer rows.Close()
	delivered := make(map[int64]bool)
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			return nil, classify("store.DeliveredProviders", err)
		}
		delivered[pid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, classify("store.DeliveredProviders", err)
	}
	return delivered, nil
}

// --- Alert Providers ---

const providerColumns = `id, type, name, enabled, config, created_at`

func scanProvider(row interface{ Scan(...any) error }) (*models.AlertProvider, error) {
	var p models.AlertProvider
	var createdAt int64
	if err := row.Scan(&p.ID, &p.Type, &p.Name, &p.Enabled, &p.Config, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func scanProviders(rows *sql.Rows) ([]models.AlertProvider, error) {
	var providers []models.AlertProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

func (s *SQLiteStore) ListProviders(ctx context.Context) ([]models.AlertProvider, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM alert_providers ORDER BY name`)
	if err != nil {
		return nil, classify("store.ListProviders", err)
	}
	defer rows.Close()
	providers, err := scanProviders(rows)
	if err != nil {
		return nil, classify("store.ListProviders", err)
	}
	return providers, nil
}

func (s *SQLiteStore) GetProvider(ctx context.Context, id int64) (*models.AlertProvider, error) {
	p, err := scanProvider(s.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM alert_providers WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("store.GetProvider", err)
	}
	return p, nil
}

func (s *SQLiteStore) CreateProvider(ctx context.Context, p *models.AlertProvider) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, "INSERT INTO alert_providers (type, name, enabled, config, created_at) VALUES (?, ?, ?, ?, ?)",
		p.Type, p.Name, p.Enabled, p.Config, toMillis(p.CreatedAt))
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return apperror.New(apperror.Conflict, "store.CreateProvider", err).
				WithMessage("a provider with that name already exists")
		}
		return classify("store.CreateProvider", err)
	}
	id, _ := result.LastInsertId()
	p.ID = id
	return nil
}

func (s *SQLiteStore) DeleteProvider(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM alert_providers WHERE id = ?", id)
	return classify("store.DeleteProvider", err)
}

func (s *SQLiteStore) GetEnabledProviders(ctx context.Context) ([]models.AlertProvider, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM alert_providers WHERE enabled = 1`)
	if err != nil {
		return nil, classify("store.GetEnabledProviders", err)
	}
	defer rows.Close()
	providers, err := scanProviders(rows)
	if err != nil {
		return nil, classify("store.GetEnabledProviders", err)
	}
	return providers, nil
}

// --- Maintenance ---

// PruneBefore removes samples and probe results older than before, and
// alerts resolved before it. Active alerts are never pruned.
func (s *SQLiteStore) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	cutoff := toMillis(before)
	var total int64

	for _, q := range []string{
		"DELETE FROM samples WHERE recorded_at < ?",
		"DELETE FROM probe_results WHERE checked_at < ?",
		"DELETE FROM alerts WHERE status = 'resolved' AND resolved_at < ?",
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, classify("store.PruneBefore", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
