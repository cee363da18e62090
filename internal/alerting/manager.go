package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
)

const (
	DefaultCooldown  = time.Hour
	DefaultListLimit = 100
)

var alertTypes = map[string]bool{
	models.AlertTypeCPU:          true,
	models.AlertTypeMemory:       true,
	models.AlertTypeDisk:         true,
	models.AlertTypeNetwork:      true,
	models.AlertTypeAvailability: true,
}

// Manager owns the alert lifecycle: raise with cooldown dedup, resolve,
// and listing by severity.
type Manager struct {
	store    store.Store
	cooldown time.Duration
	notifier *Notifier
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewManager returns a Manager. notifier may be nil, in which case new
// alerts are only stored.
func NewManager(st store.Store, cooldown time.Duration, notifier *Notifier, logger *slog.Logger, metrics *telemetry.Metrics) *Manager {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Manager{
		store:    st,
		cooldown: cooldown,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Raise creates an active alert unless one of the same (entity, type)
// was created within the cooldown window. When suppressed it returns the
// existing alert's ID with created=false.
func (m *Manager) Raise(ctx context.Context, entityID, alertType, severity, message string) (int64, bool, error) {
	const op = "alerting.Raise"
	switch {
	case entityID == "":
		return 0, false, apperror.New(apperror.InvalidInput, op, fmt.Errorf("entity id is required")).WithMessage("entity id is required")
	case !alertTypes[alertType]:
		return 0, false, apperror.New(apperror.InvalidInput, op, fmt.Errorf("unknown alert type %q", alertType)).WithMessage("unknown alert type")
	case !models.ValidSeverity(severity):
		return 0, false, apperror.New(apperror.InvalidInput, op, fmt.Errorf("unknown severity %q", severity)).WithMessage("unknown severity")
	}

	now := m.now().UTC()
	a := &models.Alert{
		EntityID:  entityID,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: now,
	}
	created, err := m.store.InsertAlertIfAbsent(ctx, a, now.Add(-m.cooldown))
	if err != nil {
		return 0, false, err
	}
	m.metrics.AlertRaised(alertType, severity, created)

	if !created {
		m.logger.Debug("duplicate alert suppressed", "entity_id", entityID, "type", alertType, "alert_id", a.ID)
		return a.ID, false, nil
	}

	m.logger.Warn("alert raised", "alert_id", a.ID, "entity_id", entityID, "type", alertType,
		"severity", severity, "message", message)
	if m.notifier != nil {
		m.notifier.Enqueue(*a)
	}
	return a.ID, true, nil
}

// Resolve marks an alert resolved. Resolving an alert that is already
// resolved or does not exist is not an error.
func (m *Manager) Resolve(ctx context.Context, id int64) error {
	changed, err := m.store.ResolveAlert(ctx, id, m.now().UTC())
	if err != nil {
		return err
	}
	if changed {
		m.metrics.AlertsResolvedAdd(1)
		m.logger.Info("alert resolved", "alert_id", id)
	}
	return nil
}

// ResolveActive resolves every active alert of alertType for entityID
// and returns how many changed. Each resolved alert is announced to the
// providers that carried it.
func (m *Manager) ResolveActive(ctx context.Context, entityID, alertType string) (int64, error) {
	resolved, err := m.store.ResolveActiveAlerts(ctx, entityID, alertType, m.now().UTC())
	if err != nil {
		return 0, err
	}
	n := int64(len(resolved))
	if n == 0 {
		return 0, nil
	}
	m.metrics.AlertsResolvedAdd(n)
	m.logger.Info("alerts auto-resolved", "entity_id", entityID, "type", alertType, "count", n)
	if m.notifier != nil {
		for _, a := range resolved {
			m.notifier.EnqueueResolved(a)
		}
	}
	return n, nil
}

// ListActive returns active alerts ordered by severity rank, then newest
// first. limit is clamped to [1, 100]; zero means 100.
func (m *Manager) ListActive(ctx context.Context, entityID string, limit int) ([]models.Alert, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	alerts, err := m.store.ListActiveAlerts(ctx, entityID, limit)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

func (m *Manager) Get(ctx context.Context, id int64) (*models.Alert, error) {
	a, err := m.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.New(apperror.NotFound, "alerting.Get", fmt.Errorf("alert %d not found", id)).
			WithMessage("alert not found")
	}
	return a, nil
}
