package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return classify("store.Ping", s.db.PingContext(ctx))
}

func (s *SQLiteStore) getUserVersion() int {
	var v int
	s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v
}

func (s *SQLiteStore) migrate() error {
	current := s.getUserVersion()
	for i := current; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration v%d: %w", i+1, err)
		}
		if err := migrations[i](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("set user_version %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", i+1, err)
		}
	}
	return nil
}

// classify tags storage failures: lock contention, I/O and closed
// handles become apperror.Unavailable so callers can retry; everything
// else is wrapped with op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return err
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN,
			sqlite3.SQLITE_IOERR, sqlite3.SQLITE_FULL, sqlite3.SQLITE_READONLY:
			return apperror.New(apperror.Unavailable, op, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "database is closed") {
		return apperror.New(apperror.Unavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func unknownEntity(op, entityID string) error {
	return apperror.New(apperror.NotFound, op, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)).
		WithMessage("unknown entity")
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

// --- Entities ---

func (s *SQLiteStore) CreateEntity(ctx context.Context, e *models.Entity) error {
	cfg, err := json.Marshal(e.Config)
	if err != nil {
		return fmt.Errorf("marshal entity config: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO entities (id, name, address, monitor_type, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Address, e.MonitorType, string(cfg), toMillis(e.CreatedAt))
	return classify("store.CreateEntity", err)
}

const entityColumns = `id, name, address, monitor_type, config, created_at`

func scanEntity(row interface{ Scan(...any) error }) (*models.Entity, error) {
	var e models.Entity
	var cfg string
	var createdAt int64
	if err := row.Scan(&e.ID, &e.Name, &e.Address, &e.MonitorType, &cfg, &createdAt); err != nil {
		return nil, err
	}
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &e.Config); err != nil {
			return nil, fmt.Errorf("parse config of entity %s: %w", e.ID, err)
		}
	}
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	e, err := scanEntity(s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("store.GetEntity", err)
	}
	return e, nil
}

// FindEntityByHost matches a reported hostname against entity addresses
// first, then names. Server entities win over websites.
func (s *SQLiteStore) FindEntityByHost(ctx context.Context, host string) (*models.Entity, error) {
	e, err := scanEntity(s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities
		WHERE address = ? OR name = ?
		ORDER BY CASE WHEN address = ? THEN 0 ELSE 1 END,
			CASE monitor_type WHEN 'server' THEN 0 ELSE 1 END,
			created_at ASC
		LIMIT 1`, host, host, host))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("store.FindEntityByHost", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY name`)
	if err != nil {
		return nil, classify("store.ListEntities", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, classify("store.ListEntities", err)
		}
		entities = append(entities, *e)
	}
	return entities, classify("store.ListEntities", rows.Err())
}

func (s *SQLiteStore) DeleteEntity(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	return classify("store.DeleteEntity", err)
}

// --- Samples ---

const sampleColumns = `id, entity_id, recorded_at, cpu_usage_pct, memory_usage_pct, disk_usage_pct,
	network_in_bps, network_out_bps, memory_total_bytes, memory_used_bytes,
	disk_total_bytes, disk_used_bytes, response_time_ms, reachable`

// AppendSample inserts s for entityID. The stored timestamp is the later
// of the requested time (now when unset or in the future) and the newest
// timestamp already stored for the entity. Clamping and insert run as one
// statement, so concurrent writers for the same entity cannot persist
// history out of order.
func (s *SQLiteStore) AppendSample(ctx context.Context, entityID string, smp *models.Sample) (*models.Sample, error) {
	now := time.Now()
	at := smp.RecordedAt
	if at.IsZero() || at.After(now) {
		at = now
	}

	var reachable interface{}
	if smp.Reachable != nil {
		reachable = *smp.Reachable
	}
	var responseMs interface{}
	if smp.ResponseTimeMs != nil {
		responseMs = *smp.ResponseTimeMs
	}

	out := *smp
	out.EntityID = entityID
	var recordedAt int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO samples (entity_id, recorded_at,
		cpu_usage_pct, memory_usage_pct, disk_usage_pct, network_in_bps, network_out_bps,
		memory_total_bytes, memory_used_bytes, disk_total_bytes, disk_used_bytes,
		response_time_ms, reachable)
		SELECT e.id, MAX(?, COALESCE((SELECT MAX(recorded_at) FROM samples WHERE entity_id = e.id), 0)),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM entities e WHERE e.id = ?
		RETURNING id, recorded_at`,
		toMillis(at),
		smp.CPUUsagePct, smp.MemoryUsagePct, smp.DiskUsagePct,
		smp.NetworkInBytesPerSec, smp.NetworkOutBytesPerSec,
		int64(smp.MemoryTotalBytes), int64(smp.MemoryUsedBytes),
		int64(smp.DiskTotalBytes), int64(smp.DiskUsedBytes),
		responseMs, reachable,
		entityID).Scan(&out.ID, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, unknownEntity("store.AppendSample", entityID)
	}
	if err != nil {
		return nil, classify("store.AppendSample", err)
	}
	out.RecordedAt = fromMillis(recordedAt)
	return &out, nil
}

func scanSample(row interface{ Scan(...any) error }) (models.Sample, error) {
	var smp models.Sample
	var recordedAt int64
	var memTotal, memUsed, diskTotal, diskUsed int64
	var responseMs sql.NullInt64
	var reachable sql.NullBool
	err := row.Scan(&smp.ID, &smp.EntityID, &recordedAt,
		&smp.CPUUsagePct, &smp.MemoryUsagePct, &smp.DiskUsagePct,
		&smp.NetworkInBytesPerSec, &smp.NetworkOutBytesPerSec,
		&memTotal, &memUsed, &diskTotal, &diskUsed,
		&responseMs, &reachable)
	if err != nil {
		return smp, err
	}
	smp.RecordedAt = fromMillis(recordedAt)
	smp.MemoryTotalBytes = uint64(memTotal)
	smp.MemoryUsedBytes = uint64(memUsed)
	smp.DiskTotalBytes = uint64(diskTotal)
	smp.DiskUsedBytes = uint64(diskUsed)
	if responseMs.Valid {
		v := responseMs.Int64
		smp.ResponseTimeMs = &v
	}
	if reachable.Valid {
		v := reachable.Bool
		smp.Reachable = &v
	}
	return smp, nil
}

func (s *SQLiteStore) LatestSample(ctx context.Context, entityID string) (*models.Sample, error) {
	smp, err := scanSample(s.db.QueryRowContext(ctx, `SELECT `+sampleColumns+`
		FROM samples WHERE entity_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, entityID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("store.LatestSample", err)
	}
	return &smp, nil
}

// History yields the samples of entityID recorded in [since, until] in
// ascending order. A zero until means now. Each iteration runs a fresh
// query, so the sequence can be ranged over more than once.
func (s *SQLiteStore) History(ctx context.Context, entityID string, since, until time.Time) iter.Seq2[models.Sample, error] {
	return func(yield func(models.Sample, error) bool) {
		end := until
		if end.IsZero() {
			end = time.Now()
		}
		rows, err := s.db.QueryContext(ctx, `SELECT `+sampleColumns+`
			FROM samples WHERE entity_id = ? AND recorded_at >= ? AND recorded_at <= ?
			ORDER BY recorded_at ASC, id ASC`, entityID, toMillis(since), toMillis(end))
		if err != nil {
			yield(models.Sample{}, classify("store.History", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			smp, err := scanSample(rows)
			if err != nil {
				yield(models.Sample{}, classify("store.History", err))
				return
			}
			if !yield(smp, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Sample{}, classify("store.History", err))
		}
	}
}

// --- Status records ---

func (s *SQLiteStore) GetStatus(ctx context.Context, entityID string) (*models.StatusRecord, error) {
	rec := &models.StatusRecord{EntityID: entityID}
	var lastChecked int64
	var lastTransition, lastDowntime sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT status, last_checked, last_transition, uptime_seconds, last_downtime
		FROM status_records WHERE entity_id = ?`, entityID).Scan(
		&rec.Status, &lastChecked, &lastTransition, &rec.UptimeSeconds, &lastDowntime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("store.GetStatus", err)
	}
	rec.LastChecked = fromMillis(lastChecked)
	rec.LastTransition = nullTime(lastTransition)
	rec.LastDowntime = nullTime(lastDowntime)
	return rec, nil
}

// SaveProbe appends result to the probe log and upserts rec in one
// transaction.
func (s *SQLiteStore) SaveProbe(ctx context.Context, result *models.ProbeResult, rec *models.StatusRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("store.SaveProbe", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO probe_results (entity_id, checked_at, reachable, response_time_ms, status_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		result.EntityID, toMillis(result.CheckedAt), result.Reachable,
		result.ResponseTimeMs, result.StatusCode, result.ErrorMessage)
	if err != nil {
		tx.Rollback()
		if isForeignKeyViolation(err) {
			return unknownEntity("store.SaveProbe", result.EntityID)
		}
		return classify("store.SaveProbe", err)
	}
	result.ID, _ = res.LastInsertId()

	_, err = tx.ExecContext(ctx, `INSERT INTO status_records (entity_id, status, last_checked, last_transition, uptime_seconds, last_downtime)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			status = excluded.status,
			last_checked = excluded.last_checked,
			last_transition = excluded.last_transition,
			uptime_seconds = excluded.uptime_seconds,
			last_downtime = excluded.last_downtime`,
		rec.EntityID, rec.Status, toMillis(rec.LastChecked),
		nullMillis(rec.LastTransition), rec.UptimeSeconds, nullMillis(rec.LastDowntime))
	if err != nil {
		tx.Rollback()
		return classify("store.SaveProbe", err)
	}
	return classify("store.SaveProbe", tx.Commit())
}

func (s *SQLiteStore) ListProbeResults(ctx context.Context, entityID string, limit int) ([]models.ProbeResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, entity_id, checked_at, reachable, response_time_ms, status_code, error_message
		FROM probe_results WHERE entity_id = ?
		ORDER BY checked_at DESC, id DESC LIMIT ?`, entityID, limit)
	if err != nil {
		return nil, classify("store.ListProbeResults", err)
	}
	defer rows.Close()

	var results []models.ProbeResult
	for rows.Next() {
		var r models.ProbeResult
		var checkedAt int64
		if err := rows.Scan(&r.ID, &r.EntityID, &checkedAt, &r.Reachable,
			&r.ResponseTimeMs, &r.StatusCode, &r.ErrorMessage); err != nil {
			return nil, classify("store.ListProbeResults", err)
		}
		r.CheckedAt = fromMillis(checkedAt)
		results = append(results, r)
	}
	return results, classify("store.ListProbeResults", rows.Err())
}

func (s *SQLiteStore) ProbeStats(ctx context.Context, entityID string, since time.Time) (ProbeStats, error) {
	var st ProbeStats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN reachable THEN 1 ELSE 0 END), 0),
			AVG(NULLIF(response_time_ms, 0))
		FROM probe_results WHERE entity_id = ? AND checked_at >= ?`,
		entityID, toMillis(since)).Scan(&st.Total, &st.Up, &avg)
	if err != nil {
		return st, classify("store.ProbeStats", err)
	}
	st.AvgResponseMs = avg.Float64
	return st, nil
}
