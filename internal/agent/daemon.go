package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coresight/coresight/internal/models"
)

type snapshotter interface {
	Collect(ctx context.Context) (*models.HealthSnapshot, error)
}

type sender interface {
	Send(ctx context.Context, report *models.MetricsReport) (*models.IngestResponse, error)
}

// Daemon collects a snapshot every interval, pushes it to the server and
// keeps the latest one for the /health endpoint.
type Daemon struct {
	cfg       *Config
	collector snapshotter
	reporter  sender
	logger    *slog.Logger

	latest atomic.Pointer[models.HealthSnapshot]
}

func NewDaemon(cfg *Config, logger *slog.Logger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		collector: NewCollector(cfg.DiskPath),
		reporter:  NewReporter(cfg.ServerURL, cfg.Password, cfg.InsecureSkipTLS),
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting agent",
		"server", d.cfg.ServerURL,
		"interval", d.cfg.Interval(),
		"entity_id", d.cfg.EntityID,
		"health_port", d.cfg.HealthPort)

	g, ctx := errgroup.WithContext(ctx)
	if d.cfg.HealthPort > 0 {
		g.Go(func() error {
			return serveHealth(ctx, d.cfg.HealthPort, healthHandler(d.snapshot, d.logger), d.logger)
		})
	}
	g.Go(func() error {
		d.tick(ctx)
		ticker := time.NewTicker(d.cfg.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				d.tick(ctx)
			}
		}
	})
	return g.Wait()
}

// snapshot returns the cached snapshot, collecting one if none exists yet.
func (d *Daemon) snapshot(ctx context.Context) (*models.HealthSnapshot, error) {
	if snap := d.latest.Load(); snap != nil {
		return snap, nil
	}
	snap, err := d.collector.Collect(ctx)
	if err != nil {
		return nil, err
	}
	d.latest.CompareAndSwap(nil, snap)
	return snap, nil
}

func (d *Daemon) tick(ctx context.Context) {
	snap, err := d.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("failed to collect metrics", "err", err)
		}
		return
	}
	d.latest.Store(snap)

	report := snap.Report()
	report.EntityID = d.cfg.EntityID

	d.logger.Debug("sending report",
		"cpu", snap.CPU.Usage,
		"mem", snap.Memory.Usage,
		"disk", snap.Disk.Usage,
		"processes", len(snap.Processes))

	resp, err := d.reporter.Send(ctx, &report)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			d.logger.Error("server rejected agent password")
			return
		}
		if ctx.Err() == nil {
			d.logger.Error("report failed", "err", err)
		}
		return
	}
	if len(resp.AlertIDs) > 0 {
		d.logger.Warn("server raised alerts", "alert_ids", resp.AlertIDs)
	}

	// Pin the entity the server resolved for us.
	if d.cfg.EntityID == "" && resp.EntityID != "" {
		d.cfg.EntityID = resp.EntityID
		if d.cfg.Path() == "" {
			return
		}
		if err := SaveConfig(d.cfg, d.cfg.Path()); err != nil {
			d.logger.Error("failed to save config with entity_id", "err", err)
		} else {
			d.logger.Info("saved entity_id to config", "entity_id", resp.EntityID)
		}
	}
}
