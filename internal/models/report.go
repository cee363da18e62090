package models

import "time"

// MetricsReport is the body of POST /metrics. Numeric fields are optional
// pointers: a field the agent did not send is nil and the ingest pipeline
// coerces it to zero with a warning.
type MetricsReport struct {
	Hostname  string          `json:"hostname" validate:"required,max=255"`
	EntityID  string          `json:"entity_id,omitempty" validate:"omitempty,uuid"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	CPU       CPUReport       `json:"cpu"`
	Memory    UsageReport     `json:"memory"`
	Disk      UsageReport     `json:"disk"`
	Network   NetworkReport   `json:"network"`
	Processes []ProcessReport `json:"processes,omitempty" validate:"max=50"`
}

type CPUReport struct {
	Usage *float64 `json:"usage"`
	Cores int      `json:"cores,omitempty"`
}

type UsageReport struct {
	Total *uint64  `json:"total"`
	Used  *uint64  `json:"used"`
	Usage *float64 `json:"usage"`
}

type NetworkReport struct {
	BytesSent      uint64          `json:"bytes_sent"`
	BytesRecv      uint64          `json:"bytes_recv"`
	InBytesPerSec  *float64        `json:"in_bytes_per_sec"`
	OutBytesPerSec *float64        `json:"out_bytes_per_sec"`
	Interfaces     []InterfaceRate `json:"interfaces,omitempty"`
}

// InterfaceRate is the throughput of one network interface between two polls.
type InterfaceRate struct {
	Name      string  `json:"name"`
	RxMBps    float64 `json:"rx_mbps"`
	TxMBps    float64 `json:"tx_mbps"`
	BytesRecv uint64  `json:"bytes_recv"`
	BytesSent uint64  `json:"bytes_sent"`
}

type ProcessReport struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"memory_percent"`
	Username   string  `json:"username,omitempty"`
}

// HealthSnapshot is served by the agent's GET /health.
type HealthSnapshot struct {
	Status    string          `json:"status"`
	Hostname  string          `json:"hostname"`
	BootID    string          `json:"boot_id,omitempty"`
	Uptime    uint64          `json:"uptime"`
	CPU       CPUStats        `json:"cpu"`
	Memory    UsageStats      `json:"memory"`
	Disk      UsageStats      `json:"disk"`
	Network   NetworkStats    `json:"network"`
	Processes []ProcessReport `json:"processes"`
	Timestamp time.Time       `json:"timestamp"`
}

type CPUStats struct {
	Usage float64 `json:"usage"`
	Cores int     `json:"cores"`
	Load1 float64 `json:"load1,omitempty"`
}

type UsageStats struct {
	Total uint64  `json:"total"`
	Used  uint64  `json:"used"`
	Usage float64 `json:"usage"`
}

type NetworkStats struct {
	BytesSent      uint64          `json:"bytes_sent"`
	BytesRecv      uint64          `json:"bytes_recv"`
	InBytesPerSec  float64         `json:"in_bytes_per_sec"`
	OutBytesPerSec float64         `json:"out_bytes_per_sec"`
	Interfaces     []InterfaceRate `json:"interfaces"`
}

// Report converts a snapshot into the wire form pushed to the server.
func (h *HealthSnapshot) Report() MetricsReport {
	ts := h.Timestamp
	return MetricsReport{
		Hostname:  h.Hostname,
		Timestamp: &ts,
		CPU:       CPUReport{Usage: &h.CPU.Usage, Cores: h.CPU.Cores},
		Memory:    UsageReport{Total: &h.Memory.Total, Used: &h.Memory.Used, Usage: &h.Memory.Usage},
		Disk:      UsageReport{Total: &h.Disk.Total, Used: &h.Disk.Used, Usage: &h.Disk.Usage},
		Network: NetworkReport{
			BytesSent:      h.Network.BytesSent,
			BytesRecv:      h.Network.BytesRecv,
			InBytesPerSec:  &h.Network.InBytesPerSec,
			OutBytesPerSec: &h.Network.OutBytesPerSec,
			Interfaces:     h.Network.Interfaces,
		},
		Processes: h.Processes,
	}
}

// IngestResponse is returned by POST /metrics on success.
type IngestResponse struct {
	Message  string  `json:"message"`
	EntityID string  `json:"entity_id,omitempty"`
	AlertIDs []int64 `json:"alert_ids,omitempty"`
}
