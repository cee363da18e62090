package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/coresight/coresight/internal/models"
)

// Limit is a pair of boundaries for one metric. A zero Critical disables
// the metric. Elevated is an optional tier between Warning and Critical
// that is reported as high severity.
type Limit struct {
	Warning  float64 `toml:"warning" yaml:"warning" json:"warning"`
	Elevated float64 `toml:"elevated,omitempty" yaml:"elevated,omitempty" json:"elevated,omitempty"`
	Critical float64 `toml:"critical" yaml:"critical" json:"critical"`
}

func (l Limit) enabled() bool {
	return l.Warning > 0 || l.Critical > 0
}

// Thresholds is the evaluation config for one call. CPU, Memory and Disk
// are percentages; Network is MB/s over the larger of in and out.
type Thresholds struct {
	CPU             Limit  `toml:"cpu" yaml:"cpu" json:"cpu"`
	Memory          Limit  `toml:"memory" yaml:"memory" json:"memory"`
	Disk            Limit  `toml:"disk" yaml:"disk" json:"disk"`
	Network         Limit  `toml:"network" yaml:"network" json:"network"`
	WarningSeverity string `toml:"warning_severity" yaml:"warning_severity" json:"warning_severity"`
}

// DefaultThresholds are used when neither the server config nor an
// override file sets a value.
var DefaultThresholds = Thresholds{
	CPU:             Limit{Warning: 70, Critical: 90},
	Memory:          Limit{Warning: 75, Critical: 90},
	Disk:            Limit{Warning: 80, Critical: 90},
	WarningSeverity: models.SeverityHigh,
}

// AlertRaiser is the part of the alert lifecycle the evaluator needs.
type AlertRaiser interface {
	Raise(ctx context.Context, entityID, alertType, severity, message string) (int64, bool, error)
}

// Finding is one metric that crossed a boundary.
type Finding struct {
	Type     string
	Severity string
	Value    float64
	Message  string
}

// Raised is a Finding together with the alert that now represents it.
type Raised struct {
	Finding
	AlertID int64
	Created bool
}

const bytesPerMB = 1024 * 1024

// Check compares s against t and returns one finding per breaching
// metric, in the order cpu, memory, disk, network.
func Check(s models.Sample, t Thresholds) []Finding {
	warnSeverity := t.WarningSeverity
	if !models.ValidSeverity(warnSeverity) {
		warnSeverity = models.SeverityHigh
	}

	netMBps := math.Max(s.NetworkInBytesPerSec, s.NetworkOutBytesPerSec) / bytesPerMB
	metrics := []struct {
		typ   string
		value float64
		limit Limit
		unit  string
	}{
		{models.AlertTypeCPU, s.CPUUsagePct, t.CPU, "%"},
		{models.AlertTypeMemory, s.MemoryUsagePct, t.Memory, "%"},
		{models.AlertTypeDisk, s.DiskUsagePct, t.Disk, "%"},
		{models.AlertTypeNetwork, netMBps, t.Network, " MB/s"},
	}

	var findings []Finding
	for _, m := range metrics {
		if !m.limit.enabled() {
			continue
		}
		severity := classify(m.value, m.limit, warnSeverity)
		if severity == "" {
			continue
		}
		findings = append(findings, Finding{
			Type:     m.typ,
			Severity: severity,
			Value:    m.value,
			Message:  fmt.Sprintf("High %s usage detected (%s%s)", m.typ, formatValue(m.value), m.unit),
		})
	}
	return findings
}

func classify(value float64, l Limit, warnSeverity string) string {
	switch {
	case l.Critical > 0 && value >= l.Critical:
		return models.SeverityCritical
	case l.Elevated > 0 && value >= l.Elevated:
		return models.SeverityHigh
	case l.Warning > 0 && value >= l.Warning:
		return warnSeverity
	default:
		return ""
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// Evaluate runs Check and raises an alert for every finding. A failed
// raise does not stop the remaining metrics; all errors are returned
// joined.
func Evaluate(ctx context.Context, r AlertRaiser, entityID string, s models.Sample, t Thresholds) ([]Raised, error) {
	var raised []Raised
	var errs []error
	for _, f := range Check(s, t) {
		id, created, err := r.Raise(ctx, entityID, f.Type, f.Severity, f.Message)
		if err != nil {
			errs = append(errs, fmt.Errorf("raise %s alert: %w", f.Type, err))
			continue
		}
		raised = append(raised, Raised{Finding: f, AlertID: id, Created: created})
	}
	return raised, errors.Join(errs...)
}
