package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
)

const MaxLogs = 100

// AlertManager is the part of the alert lifecycle the tracker drives.
type AlertManager interface {
	Raise(ctx context.Context, entityID, alertType, severity, message string) (int64, bool, error)
	ResolveActive(ctx context.Context, entityID, alertType string) (int64, error)
}

// Tracker maintains the per-entity online/offline state machine and the
// probe log it is derived from.
type Tracker struct {
	store   store.Store
	alerts  AlertManager
	logger  *slog.Logger
	metrics *telemetry.Metrics
	locks   keyedMutex
	now     func() time.Time
}

func New(st store.Store, alerts AlertManager, logger *slog.Logger, metrics *telemetry.Metrics) *Tracker {
	return &Tracker{
		store:   st,
		alerts:  alerts,
		logger:  logger,
		metrics: metrics,
		locks:   keyedMutex{locks: map[string]*refLock{}},
		now:     time.Now,
	}
}

// Record applies one probe result to the entity's status record.
//
// The first probe initializes the record without a transition. After
// that, a change of reachability stamps last_transition; going offline
// also stamps last_downtime and raises a critical availability alert,
// and coming back online resolves it. Probes for one entity are applied
// one at a time.
func (t *Tracker) Record(ctx context.Context, r models.ProbeResult) (*models.StatusRecord, error) {
	if r.EntityID == "" {
		return nil, apperror.New(apperror.InvalidInput, "tracker.Record", fmt.Errorf("entity id is required"))
	}
	if r.CheckedAt.IsZero() {
		r.CheckedAt = t.now()
	}
	r.CheckedAt = r.CheckedAt.UTC()

	unlock := t.locks.Lock(r.EntityID)
	defer unlock()

	prev, err := t.store.GetStatus(ctx, r.EntityID)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	next, transitioned := advance(prev, r)
	if err := t.store.SaveProbe(ctx, &r, next); err != nil {
		return nil, err
	}
	if !transitioned {
		return next, nil
	}

	t.metrics.StatusTransition(next.Status)
	if next.Status == models.StatusOffline {
		t.logger.Warn("entity went offline", "entity_id", r.EntityID, "err_msg", r.ErrorMessage)
		name := r.EntityID
		if e, err := t.store.GetEntity(ctx, r.EntityID); err == nil && e != nil {
			name = e.Label()
		}
		if _, _, err := t.alerts.Raise(ctx, r.EntityID, models.AlertTypeAvailability, models.SeverityCritical,
			fmt.Sprintf("%s is unreachable", name)); err != nil {
			return next, fmt.Errorf("raise availability alert: %w", err)
		}
		return next, nil
	}

	t.logger.Info("entity back online", "entity_id", r.EntityID)
	if _, err := t.alerts.ResolveActive(ctx, r.EntityID, models.AlertTypeAvailability); err != nil {
		return next, fmt.Errorf("resolve availability alert: %w", err)
	}
	return next, nil
}

// advance computes the status record that follows prev after r.
func advance(prev *models.StatusRecord, r models.ProbeResult) (*models.StatusRecord, bool) {
	status := models.StatusOffline
	if r.Reachable {
		status = models.StatusOnline
	}

	if prev == nil {
		return &models.StatusRecord{
			EntityID:    r.EntityID,
			Status:      status,
			LastChecked: r.CheckedAt,
		}, false
	}

	next := *prev
	if prev.Status == models.StatusOnline && r.CheckedAt.After(prev.LastChecked) {
		next.UptimeSeconds += int64(r.CheckedAt.Sub(prev.LastChecked) / time.Second)
	}
	if r.CheckedAt.After(prev.LastChecked) {
		next.LastChecked = r.CheckedAt
	}

	if status == prev.Status {
		return &next, false
	}
	next.Status = status
	at := r.CheckedAt
	next.LastTransition = &at
	if status == models.StatusOffline {
		down := r.CheckedAt
		next.LastDowntime = &down
	}
	return &next, true
}

// Status returns the current status record of an entity.
func (t *Tracker) Status(ctx context.Context, entityID string) (*models.StatusRecord, error) {
	rec, err := t.store.GetStatus(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperror.New(apperror.NotFound, "tracker.Status", fmt.Errorf("no status for %s", entityID)).
			WithMessage("status not found")
	}
	return rec, nil
}

// Uptime is the share of successful probes within window ending now,
// rounded to two decimals. With no probes the entity counts as fully up.
func (t *Tracker) Uptime(ctx context.Context, entityID string, w Window) (*models.UptimeReport, error) {
	stats, err := t.store.ProbeStats(ctx, entityID, t.now().Add(-w.Duration))
	if err != nil {
		return nil, err
	}
	report := &models.UptimeReport{
		EntityID:      entityID,
		Window:        w.Label,
		UptimePct:     100,
		TotalChecks:   stats.Total,
		UpChecks:      stats.Up,
		AvgResponseMs: round2(stats.AvgResponseMs),
	}
	if stats.Total > 0 {
		report.UptimePct = round2(float64(stats.Up) / float64(stats.Total) * 100)
	}
	return report, nil
}

// Logs returns the most recent probe results, newest first.
func (t *Tracker) Logs(ctx context.Context, entityID string, limit int) ([]models.ProbeResult, error) {
	if limit <= 0 || limit > MaxLogs {
		limit = MaxLogs
	}
	logs, err := t.store.ListProbeResults(ctx, entityID, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.ProbeResult{}
	}
	return logs, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
