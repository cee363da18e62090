package tracker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
)

// SchedulerConfig controls how often entities are probed.
type SchedulerConfig struct {
	Interval      time.Duration
	MaxConcurrent int
}

// Scheduler probes every registered entity on a ticker. Websites with a
// check_interval_seconds are probed at their own cadence.
type Scheduler struct {
	store   store.Store
	prober  *Prober
	tracker *Tracker
	logger  *slog.Logger
	metrics *telemetry.Metrics
	cfg     SchedulerConfig

	lastProbed map[string]time.Time
}

func NewScheduler(st store.Store, prober *Prober, tr *Tracker, cfg SchedulerConfig, logger *slog.Logger, metrics *telemetry.Metrics) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 16
	}
	return &Scheduler{
		store:      st,
		prober:     prober,
		tracker:    tr,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		lastProbed: map[string]time.Time{},
	}
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()

	s.logger.Info("probe scheduler started", "interval", s.cfg.Interval, "max_concurrent", s.cfg.MaxConcurrent)
	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("probe scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// tickInterval is fine enough to honour per-website intervals shorter
// than the global one.
func (s *Scheduler) tickInterval() time.Duration {
	if s.cfg.Interval > 10*time.Second {
		return 10 * time.Second
	}
	return s.cfg.Interval
}

// RunOnce probes all due entities concurrently and waits for them. It
// returns the number of entities probed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	entities, err := s.store.ListEntities(ctx)
	if err != nil {
		s.logger.Error("failed to list entities for probing", "err", err)
		return 0
	}

	now := time.Now()
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	probed := 0
	for i := range entities {
		e := &entities[i]
		if !s.due(e, now) {
			continue
		}
		s.lastProbed[e.ID] = now
		probed++
		g.Go(func() error {
			s.probe(ctx, e)
			return nil
		})
	}
	g.Wait()

	for id := range s.lastProbed {
		if !containsEntity(entities, id) {
			delete(s.lastProbed, id)
		}
	}
	return probed
}

func (s *Scheduler) due(e *models.Entity, now time.Time) bool {
	last, ok := s.lastProbed[e.ID]
	if !ok {
		return true
	}
	interval := s.cfg.Interval
	if e.MonitorType == models.MonitorWebsite && e.Config.CheckIntervalSeconds > 0 {
		interval = time.Duration(e.Config.CheckIntervalSeconds) * time.Second
	}
	// Small slack so a tick that lands just early is not skipped.
	return now.Sub(last) >= interval-time.Second
}

func (s *Scheduler) probe(ctx context.Context, e *models.Entity) {
	start := time.Now()
	result := s.prober.Probe(ctx, e)
	s.metrics.ObserveProbe(e.MonitorType, result.Reachable, time.Since(start))
	if ctx.Err() != nil {
		return
	}

	if _, err := s.tracker.Record(ctx, result); err != nil {
		s.logger.Error("failed to record probe", "entity_id", e.ID, "name", e.Name, "err", err)
	}

	if e.MonitorType != models.MonitorWebsite {
		return
	}
	reachable := result.Reachable
	responseMs := result.ResponseTimeMs
	smp := &models.Sample{
		RecordedAt:     result.CheckedAt,
		ResponseTimeMs: &responseMs,
		Reachable:      &reachable,
	}
	if _, err := s.store.AppendSample(ctx, e.ID, smp); err != nil {
		s.logger.Error("failed to store website sample", "entity_id", e.ID, "err", err)
	}
}

func containsEntity(entities []models.Entity, id string) bool {
	for i := range entities {
		if entities[i].ID == id {
			return true
		}
	}
	return false
}
