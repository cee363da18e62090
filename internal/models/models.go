package models

import "time"

// Monitor types.
const (
	MonitorServer  = "server"
	MonitorWebsite = "website"
)

// Entity is a monitored server or website. The core reads entities but
// never mutates them.
type Entity struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	MonitorType string       `json:"monitor_type"`
	Config      EntityConfig `json:"config"`
	CreatedAt   time.Time    `json:"created_at"`
}

// EntityConfig is the per-entity check configuration, stored as a JSON blob.
type EntityConfig struct {
	URL                  string `json:"url,omitempty"`
	CheckIntervalSeconds int    `json:"check_interval_seconds,omitempty"`
	ExpectedStatus       int    `json:"expected_status,omitempty"`
	HealthPort           int    `json:"health_port,omitempty"`
}

// Label returns the display name, falling back to the address.
func (e *Entity) Label() string {
	if e == nil {
		return ""
	}
	if e.Name != "" {
		return e.Name
	}
	return e.Address
}

// Sample is one immutable measurement for an entity. RecordedAt is
// assigned by the store at ingestion.
type Sample struct {
	ID                    int64     `json:"id,omitempty"`
	EntityID              string    `json:"entity_id,omitempty"`
	RecordedAt            time.Time `json:"recorded_at"`
	CPUUsagePct           float64   `json:"cpu_usage"`
	MemoryUsagePct        float64   `json:"memory_usage"`
	DiskUsagePct          float64   `json:"disk_usage"`
	NetworkInBytesPerSec  float64   `json:"network_in"`
	NetworkOutBytesPerSec float64   `json:"network_out"`
	MemoryTotalBytes      uint64    `json:"memory_total_bytes,omitempty"`
	MemoryUsedBytes       uint64    `json:"memory_used_bytes,omitempty"`
	DiskTotalBytes        uint64    `json:"disk_total_bytes,omitempty"`
	DiskUsedBytes         uint64    `json:"disk_used_bytes,omitempty"`

	// Website samples only.
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty"`
	Reachable      *bool  `json:"reachable,omitempty"`
}

// Entity statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusRecord is the current derived state of an entity.
type StatusRecord struct {
	EntityID       string     `json:"entity_id"`
	Status         string     `json:"status"`
	LastChecked    time.Time  `json:"last_checked"`
	LastTransition *time.Time `json:"last_transition,omitempty"`
	UptimeSeconds  int64      `json:"uptime_seconds"`
	LastDowntime   *time.Time `json:"last_downtime,omitempty"`
}

// ProbeResult is the outcome of one reachability check.
type ProbeResult struct {
	ID             int64     `json:"id,omitempty"`
	EntityID       string    `json:"entity_id"`
	CheckedAt      time.Time `json:"checked_at"`
	Reachable      bool      `json:"reachable"`
	ResponseTimeMs int64     `json:"response_time_ms,omitempty"`
	StatusCode     int       `json:"status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// ProcessList is the most recent process table an agent reported.
type ProcessList struct {
	EntityID   string          `json:"entity_id"`
	CapturedAt time.Time       `json:"captured_at"`
	Processes  []ProcessReport `json:"processes"`
}

// EntityStatus is one row of the fleet overview. Status and Latest are
// nil until the entity has been checked or has reported.
type EntityStatus struct {
	Entity Entity        `json:"entity"`
	Status *StatusRecord `json:"status,omitempty"`
	Latest *Sample       `json:"latest,omitempty"`
}

// UptimeReport summarizes probe results over a window.
type UptimeReport struct {
	EntityID      string  `json:"entity_id"`
	Window        string  `json:"window"`
	UptimePct     float64 `json:"uptime"`
	TotalChecks   int     `json:"total_checks"`
	UpChecks      int     `json:"up_checks"`
	AvgResponseMs float64 `json:"avg_response_time"`
}

// Alert types.
const (
	AlertTypeCPU          = "cpu"
	AlertTypeMemory       = "memory"
	AlertTypeDisk         = "disk"
	AlertTypeNetwork      = "network"
	AlertTypeAvailability = "availability"
)

// Alert severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SeverityRank orders severities for display: critical sorts first.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 4
	default:
		return 5
	}
}

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s string) bool {
	return SeverityRank(s) < 5
}

// Alert statuses.
const (
	AlertActive   = "active"
	AlertResolved = "resolved"
)

// Alert is an actionable finding about an entity.
type Alert struct {
	ID         int64      `json:"id"`
	EntityID   string     `json:"entity_id"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Notified   bool       `json:"notified"`
	// Failed delivery rounds so far.
	NotifyAttempts int `json:"notify_attempts,omitempty"`
}

// AlertProvider represents a configured notification channel.
type AlertProvider struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"` // "twilio", "pushover", "smtp", "shoutrrr", "mqtt", "amqp"
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Config    string    `json:"config"` // JSON blob
	CreatedAt time.Time `json:"created_at"`
}

// TestAlertResult carries delivery details for a provider test-send request.
type TestAlertResult struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
}
