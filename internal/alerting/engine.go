package alerting

import (
	"context"
	"log/slog"
	"time"

	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
)

// NotifierConfig tunes the notification loop.
type NotifierConfig struct {
	QueueSize     int
	SweepInterval time.Duration
	// Retention enables daily pruning of samples, probe results and
	// resolved alerts older than this. Zero keeps everything.
	Retention time.Duration
}

// Notifier delivers newly raised and resolved alerts asynchronously and
// periodically retries alerts that were never delivered.
type Notifier struct {
	store      store.Store
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	cfg        NotifierConfig
	queue      chan queuedAlert
}

type queuedAlert struct {
	alert    models.Alert
	resolved bool
}

func NewNotifier(st store.Store, dispatcher *Dispatcher, cfg NotifierConfig, logger *slog.Logger, metrics *telemetry.Metrics) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Notifier{
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		queue:      make(chan queuedAlert, cfg.QueueSize),
	}
}

// Enqueue hands an alert to the loop without blocking. When the queue is
// full the alert stays unnotified and the next sweep picks it up.
func (n *Notifier) Enqueue(a models.Alert) {
	n.enqueue(queuedAlert{alert: a})
}

// EnqueueResolved queues a recovery notice. Recoveries dropped on a full
// queue are not retried.
func (n *Notifier) EnqueueResolved(a models.Alert) {
	n.enqueue(queuedAlert{alert: a, resolved: true})
}

func (n *Notifier) enqueue(q queuedAlert) {
	select {
	case n.queue <- q:
	default:
		n.metrics.NotificationDropped()
		n.logger.Warn("alert notification queue full, dropping", "alert_id", q.alert.ID, "resolved", q.resolved)
	}
}

// Run starts the notification loop and blocks until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(n.cfg.SweepInterval)
	defer sweepTicker.Stop()

	var cleanupC <-chan time.Time
	if n.cfg.Retention > 0 {
		cleanupTicker := time.NewTicker(24 * time.Hour)
		defer cleanupTicker.Stop()
		cleanupC = cleanupTicker.C
		n.cleanupOldData(ctx)
	}

	n.logger.Info("alert notifier started")
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("alert notifier stopped")
			return
		case q := <-n.queue:
			n.deliver(ctx, q)
		case <-sweepTicker.C:
			n.sweep(ctx)
		case <-cleanupC:
			n.cleanupOldData(ctx)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, q queuedAlert) {
	if q.resolved {
		if err := n.dispatcher.DispatchResolved(ctx, &q.alert); err != nil {
			n.logger.Error("recovery dispatch failed", "alert_id", q.alert.ID, "err", err)
		}
		return
	}
	if err := n.dispatcher.Dispatch(ctx, &q.alert); err != nil {
		n.logger.Error("alert dispatch failed", "alert_id", q.alert.ID, "err", err)
	}
}

func (n *Notifier) sweep(ctx context.Context) {
	alerts, err := n.store.GetUnnotifiedAlerts(ctx, n.dispatcher.now(), MaxNotifyAttempts)
	if err != nil {
		n.logger.Error("failed to get unnotified alerts", "err", err)
		return
	}
	for i := range alerts {
		a := &alerts[i]
		if a.Status == models.AlertResolved {
			// Nothing left to act on.
			if err := n.store.MarkAlertNotified(ctx, a.ID); err != nil {
				n.logger.Error("failed to mark alert notified", "alert_id", a.ID, "err", err)
			}
			continue
		}
		if err := n.dispatcher.Dispatch(ctx, a); err != nil {
			n.logger.Error("alert redelivery failed", "alert_id", a.ID, "err", err)
		}
	}
}

func (n *Notifier) cleanupOldData(ctx context.Context) {
	cutoff := time.Now().Add(-n.cfg.Retention)
	deleted, err := n.store.PruneBefore(ctx, cutoff)
	if err != nil {
		n.logger.Error("data retention cleanup failed", "err", err)
		return
	}
	n.logger.Info("data retention cleanup complete", "rows_deleted", deleted, "cutoff", cutoff)
}
