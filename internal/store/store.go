package store

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/coresight/coresight/internal/models"
)

// ErrUnknownEntity is wrapped (as apperror.NotFound) when a write
// references an entity that does not exist.
var ErrUnknownEntity = errors.New("unknown entity")

// Store defines the data access interface for CoreSight.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// Entities
	CreateEntity(ctx context.Context, e *models.Entity) error
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	FindEntityByHost(ctx context.Context, host string) (*models.Entity, error)
	ListEntities(ctx context.Context) ([]models.Entity, error)
	DeleteEntity(ctx context.Context, id string) error

	// Samples (append-only)
	AppendSample(ctx context.Context, entityID string, s *models.Sample) (*models.Sample, error)
	LatestSample(ctx context.Context, entityID string) (*models.Sample, error)
	History(ctx context.Context, entityID string, since, until time.Time) iter.Seq2[models.Sample, error]

	// Status records and probe log
	GetStatus(ctx context.Context, entityID string) (*models.StatusRecord, error)
	SaveProbe(ctx context.Context, result *models.ProbeResult, rec *models.StatusRecord) error
	ListProbeResults(ctx context.Context, entityID string, limit int) ([]models.ProbeResult, error)
	ListEntityStatuses(ctx context.Context) ([]models.EntityStatus, error)

	// Latest process table per entity, replaced on every report
	ReplaceProcesses(ctx context.Context, list *models.ProcessList) error
	GetProcesses(ctx context.Context, entityID string) (*models.ProcessList, error)
	ProbeStats(ctx context.Context, entityID string, since time.Time) (ProbeStats, error)

	// Alerts
	InsertAlertIfAbsent(ctx context.Context, a *models.Alert, cooldownStart time.Time) (created bool, err error)
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	ResolveAlert(ctx context.Context, id int64, at time.Time) (bool, error)
	ResolveActiveAlerts(ctx context.Context, entityID, alertType string, at time.Time) ([]models.Alert, error)
	ListActiveAlerts(ctx context.Context, entityID string, limit int) ([]models.Alert, error)
	MarkAlertNotified(ctx context.Context, id int64) error
	GetUnnotifiedAlerts(ctx context.Context, now time.Time, maxAttempts int) ([]models.Alert, error)
	RecordNotifyFailure(ctx context.Context, id int64, retryAt time.Time) error
	RecordDelivery(ctx context.Context, id, providerID int64) error
	DeliveredProviders(ctx context.Context, id int64) (map[int64]bool, error)

	// Alert providers
	ListProviders(ctx context.Context) ([]models.AlertProvider, error)
	GetProvider(ctx context.Context, id int64) (*models.AlertProvider, error)
	CreateProvider(ctx context.Context, p *models.AlertProvider) error
	DeleteProvider(ctx context.Context, id int64) error
	GetEnabledProviders(ctx context.Context) ([]models.AlertProvider, error)

	// Maintenance
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

// ProbeStats aggregates the probe log over a window.
type ProbeStats struct {
	Total         int
	Up            int
	AvgResponseMs float64
}
