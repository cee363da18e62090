package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/evaluator"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
)

const (
	storeAttempts = 3
	entityTTL     = 5 * time.Minute
	// Agent clocks further off than this are logged.
	maxClockSkew = time.Minute
)

// ThresholdSource returns the thresholds that apply to an entity.
type ThresholdSource interface {
	For(e *models.Entity) evaluator.Thresholds
}

// Config controls entity resolution.
type Config struct {
	// AutoRegister creates a server entity for an unknown hostname instead
	// of rejecting the report.
	AutoRegister bool
}

// Pipeline turns an agent report into a stored sample and any alerts it
// warrants.
type Pipeline struct {
	store      store.Store
	alerts     evaluator.AlertRaiser
	thresholds ThresholdSource
	cfg        Config
	validate   *validator.Validate
	entities   *cache.Cache
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	now        func() time.Time
}

func New(st store.Store, alerts evaluator.AlertRaiser, thresholds ThresholdSource, cfg Config, logger *slog.Logger, metrics *telemetry.Metrics) *Pipeline {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Pipeline{
		store:      st,
		alerts:     alerts,
		thresholds: thresholds,
		cfg:        cfg,
		validate:   v,
		entities:   cache.New(entityTTL, 10*time.Minute),
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Result describes one ingested report.
type Result struct {
	Entity *models.Entity
	Sample *models.Sample
	Alerts []evaluator.Raised
}

// Ingest validates r, appends it as a sample for the resolved entity,
// replaces the entity's process table when the report carries one and
// evaluates thresholds. Storage that is temporarily unavailable is
// retried; failures after the sample is stored are logged but do not
// fail the ingest.
func (p *Pipeline) Ingest(ctx context.Context, r *models.MetricsReport) (res *Result, err error) {
	const op = "ingest.Ingest"
	started := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = string(apperror.KindOf(err))
		}
		p.metrics.ObserveIngest(result, started)
	}()

	r.Hostname = strings.TrimSpace(r.Hostname)
	if err := p.validate.Struct(r); err != nil {
		return nil, apperror.New(apperror.InvalidInput, op, err).WithMessage(validationMessage(err))
	}

	entity, err := p.resolveEntity(ctx, r)
	if err != nil {
		return nil, err
	}

	smp := p.toSample(r)
	var stored *models.Sample
	err = retry(ctx, storeAttempts, func() error {
		var err error
		stored, err = p.store.AppendSample(ctx, entity.ID, smp)
		return err
	})
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			p.entities.Delete(r.Hostname)
		}
		return nil, err
	}

	if r.Processes != nil {
		list := &models.ProcessList{EntityID: entity.ID, CapturedAt: stored.RecordedAt, Processes: r.Processes}
		if err := p.store.ReplaceProcesses(ctx, list); err != nil {
			p.logger.Error("failed to store process list", "entity_id", entity.ID, "err", err)
		}
	}

	raised, err := evaluator.Evaluate(ctx, p.alerts, entity.ID, *stored, p.thresholds.For(entity))
	if err != nil {
		p.logger.Error("threshold evaluation failed", "entity_id", entity.ID, "err", err)
	}
	return &Result{Entity: entity, Sample: stored, Alerts: raised}, nil
}

func (p *Pipeline) resolveEntity(ctx context.Context, r *models.MetricsReport) (*models.Entity, error) {
	const op = "ingest.resolveEntity"
	if r.EntityID != "" {
		e, err := p.store.GetEntity(ctx, r.EntityID)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, apperror.New(apperror.NotFound, op, fmt.Errorf("%w: %s", store.ErrUnknownEntity, r.EntityID)).
				WithMessage("unknown entity")
		}
		return e, nil
	}

	if v, ok := p.entities.Get(r.Hostname); ok {
		return v.(*models.Entity), nil
	}

	e, err := p.store.FindEntityByHost(ctx, r.Hostname)
	if err != nil {
		return nil, err
	}
	if e == nil {
		if !p.cfg.AutoRegister {
			return nil, apperror.New(apperror.NotFound, op, fmt.Errorf("%w: host %s", store.ErrUnknownEntity, r.Hostname)).
				WithMessage("unknown host")
		}
		e = &models.Entity{
			ID:          uuid.NewString(),
			Name:        r.Hostname,
			Address:     r.Hostname,
			MonitorType: models.MonitorServer,
		}
		if err := p.store.CreateEntity(ctx, e); err != nil {
			return nil, fmt.Errorf("auto-register %s: %w", r.Hostname, err)
		}
		p.logger.Info("auto-registered entity", "entity_id", e.ID, "hostname", r.Hostname)
	}
	p.entities.Set(r.Hostname, e, cache.DefaultExpiration)
	return e, nil
}

// toSample applies the defaulting rules: any missing numeric field is
// stored as zero and reported in a single warning. The sample is stamped
// with server time; the agent's timestamp only feeds the skew warning.
func (p *Pipeline) toSample(r *models.MetricsReport) *models.Sample {
	var missing []string
	pct := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}
	bytes := func(v *uint64) uint64 {
		if v == nil {
			return 0
		}
		return *v
	}

	smp := &models.Sample{
		CPUUsagePct:           pct("cpu.usage", r.CPU.Usage),
		MemoryUsagePct:        pct("memory.usage", r.Memory.Usage),
		DiskUsagePct:          pct("disk.usage", r.Disk.Usage),
		NetworkInBytesPerSec:  pct("network.in_bytes_per_sec", r.Network.InBytesPerSec),
		NetworkOutBytesPerSec: pct("network.out_bytes_per_sec", r.Network.OutBytesPerSec),
		MemoryTotalBytes:      bytes(r.Memory.Total),
		MemoryUsedBytes:       bytes(r.Memory.Used),
		DiskTotalBytes:        bytes(r.Disk.Total),
		DiskUsedBytes:         bytes(r.Disk.Used),
	}
	smp.RecordedAt = p.now()
	if r.Timestamp != nil {
		if skew := r.Timestamp.Sub(smp.RecordedAt); skew > maxClockSkew || skew < -maxClockSkew {
			p.logger.Warn("agent clock skew", "hostname", r.Hostname, "skew", skew.Round(time.Second))
		}
	}
	if len(missing) > 0 {
		p.logger.Warn("report missing fields, defaulting to 0", "hostname", r.Hostname, "fields", strings.Join(missing, ","))
	}
	return smp
}

// retry runs fn up to attempts times while it fails with an Unavailable
// error, backing off linearly.
func retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !apperror.IsKind(err, apperror.Unavailable) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(50*(i+1)) * time.Millisecond):
		}
	}
	return fmt.Errorf("store unavailable after %d attempts: %w", attempts, err)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid metrics report"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s exceeds maximum of %s", field, fe.Param())
	case "uuid":
		return field + " must be a UUID"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
