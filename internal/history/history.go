package history

import (
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
)

// Point is one averaged bucket of samples.
type Point struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
	NetworkIn   float64   `json:"network_in"`
	NetworkOut  float64   `json:"network_out"`
}

// Preset is a named history range with its bucket width.
type Preset struct {
	Name   string
	Range  time.Duration
	Bucket time.Duration
}

var presets = map[string]Preset{
	"1h":   {"1h", time.Hour, time.Minute},
	"24h":  {"24h", 24 * time.Hour, 15 * time.Minute},
	"7d":   {"7d", 7 * 24 * time.Hour, time.Hour},
	"30d":  {"30d", 30 * 24 * time.Hour, 6 * time.Hour},
	"365d": {"365d", 365 * 24 * time.Hour, 24 * time.Hour},
}

// LookupPreset returns the preset for name; empty means 24h.
func LookupPreset(name string) (Preset, error) {
	if name == "" {
		name = "24h"
	}
	p, ok := presets[name]
	if !ok {
		return Preset{}, apperror.New(apperror.InvalidInput, "history.LookupPreset", fmt.Errorf("unknown range %q", name)).
			WithMessage("range must be one of 1h, 24h, 7d, 30d, 365d")
	}
	return p, nil
}

// BucketFor returns the bucket width of the smallest preset whose range
// covers span.
func BucketFor(span time.Duration) time.Duration {
	best := presets["365d"]
	for _, p := range presets {
		if p.Range >= span && p.Range < best.Range {
			best = p
		}
	}
	return best.Bucket
}

// Buckets averages the samples of seq into fixed-width buckets aligned to
// the unix epoch. Buckets without samples are omitted. seq must be in
// ascending time order.
func Buckets(seq iter.Seq2[models.Sample, error], bucket time.Duration) ([]Point, error) {
	if bucket <= 0 {
		return nil, apperror.New(apperror.InvalidInput, "history.Buckets", fmt.Errorf("bucket must be positive")).
			WithMessage("bucket must be positive")
	}

	points := []Point{}
	var acc accumulator
	var current time.Time
	for s, err := range seq {
		if err != nil {
			return nil, err
		}
		start := s.RecordedAt.Truncate(bucket)
		if acc.n > 0 && !start.Equal(current) {
			points = append(points, acc.point(current))
			acc = accumulator{}
		}
		current = start
		acc.add(s)
	}
	if acc.n > 0 {
		points = append(points, acc.point(current))
	}
	return points, nil
}

type accumulator struct {
	n int

	cpu, mem, disk, netIn, netOut float64
}

func (a *accumulator) add(s models.Sample) {
	a.n++
	a.cpu += s.CPUUsagePct
	a.mem += s.MemoryUsagePct
	a.disk += s.DiskUsagePct
	a.netIn += s.NetworkInBytesPerSec
	a.netOut += s.NetworkOutBytesPerSec
}

func (a *accumulator) point(ts time.Time) Point {
	n := float64(a.n)
	return Point{
		Timestamp:   ts.UTC(),
		CPUUsage:    round2(a.cpu / n),
		MemoryUsage: round2(a.mem / n),
		DiskUsage:   round2(a.disk / n),
		NetworkIn:   round2(a.netIn / n),
		NetworkOut:  round2(a.netOut / n),
	}
}

// Value is one point of a single-field series.
type Value struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Summary holds the latest sample in display units.
type Summary struct {
	CPUUsage      float64   `json:"cpu_usage"`
	MemoryUsage   float64   `json:"memory_usage"`
	DiskUsage     float64   `json:"disk_usage"`
	MemoryTotalGB float64   `json:"memory_total_gb"`
	MemoryUsedGB  float64   `json:"memory_used_gb"`
	DiskTotalGB   float64   `json:"disk_total_gb"`
	DiskUsedGB    float64   `json:"disk_used_gb"`
	NetworkInMB   float64   `json:"network_in_mb"`
	NetworkOutMB  float64   `json:"network_out_mb"`
	Timestamp     time.Time `json:"timestamp"`
}

// Series is the last-hour view: one series per field plus a summary.
type Series struct {
	CPUUsage    []Value  `json:"cpu_usage"`
	MemoryUsage []Value  `json:"memory_usage"`
	DiskUsage   []Value  `json:"disk_usage"`
	NetworkIn   []Value  `json:"network_in"`
	NetworkOut  []Value  `json:"network_out"`
	Summary     *Summary `json:"summary"`
}

const (
	bytesPerGB = 1024 * 1024 * 1024
	bytesPerMB = 1024 * 1024
)

// LastHour reshapes seq into per-field series. It returns nil when seq
// yields no samples.
func LastHour(seq iter.Seq2[models.Sample, error]) (*Series, error) {
	out := &Series{}
	var latest *models.Sample
	for s, err := range seq {
		if err != nil {
			return nil, err
		}
		ts := s.RecordedAt.UTC()
		out.CPUUsage = append(out.CPUUsage, Value{ts, s.CPUUsagePct})
		out.MemoryUsage = append(out.MemoryUsage, Value{ts, s.MemoryUsagePct})
		out.DiskUsage = append(out.DiskUsage, Value{ts, s.DiskUsagePct})
		out.NetworkIn = append(out.NetworkIn, Value{ts, s.NetworkInBytesPerSec})
		out.NetworkOut = append(out.NetworkOut, Value{ts, s.NetworkOutBytesPerSec})
		latest = &s
	}
	if latest == nil {
		return nil, nil
	}
	out.Summary = &Summary{
		CPUUsage:      round2(latest.CPUUsagePct),
		MemoryUsage:   round2(latest.MemoryUsagePct),
		DiskUsage:     round2(latest.DiskUsagePct),
		MemoryTotalGB: round2(float64(latest.MemoryTotalBytes) / bytesPerGB),
		MemoryUsedGB:  round2(float64(latest.MemoryUsedBytes) / bytesPerGB),
		DiskTotalGB:   round2(float64(latest.DiskTotalBytes) / bytesPerGB),
		DiskUsedGB:    round2(float64(latest.DiskUsedBytes) / bytesPerGB),
		NetworkInMB:   round2(latest.NetworkInBytesPerSec / bytesPerMB),
		NetworkOutMB:  round2(latest.NetworkOutBytesPerSec / bytesPerMB),
		Timestamp:     latest.RecordedAt.UTC(),
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
