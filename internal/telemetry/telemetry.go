package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coresight"

// Metrics holds the server's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SamplesIngested   *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	AlertsRaised      *prometheus.CounterVec
	AlertsSuppressed  *prometheus.CounterVec
	AlertsResolved    prometheus.Counter
	Notifications     *prometheus.CounterVec
	NotificationDrops prometheus.Counter
	Probes            *prometheus.CounterVec
	ProbeDuration     *prometheus.HistogramVec
	StatusTransitions *prometheus.CounterVec
}

// New registers all instruments on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SamplesIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      "Metric reports processed by the ingest pipeline, by result.",
		}, []string{"result"}),
		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time spent storing and evaluating one metrics report.",
			Buckets:   prometheus.DefBuckets,
		}),
		AlertsRaised: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts created, by type and severity.",
		}, []string{"type", "severity"}),
		AlertsSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Raise requests suppressed by the cooldown window, by type.",
		}, []string{"type"}),
		AlertsResolved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_resolved_total",
			Help:      "Alerts moved from active to resolved.",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries, by provider type and result.",
		}, []string{"provider", "result"}),
		NotificationDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_queue_drops_total",
			Help:      "Alerts not queued for notification because the queue was full.",
		}),
		Probes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Reachability probes, by monitor type and result.",
		}, []string{"monitor_type", "result"}),
		ProbeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Reachability probe latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"monitor_type"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Entity status changes, by new status.",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveIngest(result string, started time.Time) {
	if m == nil {
		return
	}
	m.SamplesIngested.WithLabelValues(result).Inc()
	m.IngestDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) AlertRaised(alertType, severity string, created bool) {
	if m == nil {
		return
	}
	if created {
		m.AlertsRaised.WithLabelValues(alertType, severity).Inc()
	} else {
		m.AlertsSuppressed.WithLabelValues(alertType).Inc()
	}
}

func (m *Metrics) AlertsResolvedAdd(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.AlertsResolved.Add(float64(n))
}

func (m *Metrics) Notification(provider string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifications.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.NotificationDrops.Inc()
}

func (m *Metrics) ObserveProbe(monitorType string, reachable bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "up"
	if !reachable {
		result = "down"
	}
	m.Probes.WithLabelValues(monitorType, result).Inc()
	m.ProbeDuration.WithLabelValues(monitorType).Observe(d.Seconds())
}

func (m *Metrics) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}
