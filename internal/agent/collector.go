package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"github.com/coresight/coresight/internal/models"
)

const bytesPerMB = 1024 * 1024

// Collector takes host snapshots. Network rates are computed against the
// counters of the previous call on the same Collector.
type Collector struct {
	diskPath string
	bootID   string

	mu       sync.Mutex
	prevNet  map[string]net.IOCountersStat
	prevTime time.Time

	// Overridable in tests.
	now      func() time.Time
	counters func(ctx context.Context) ([]net.IOCountersStat, error)
}

func NewCollector(diskPath string) *Collector {
	if diskPath == "" {
		diskPath = defaultDiskPath()
	}
	return &Collector{
		diskPath: diskPath,
		bootID:   bootSessionID(),
		now:      time.Now,
		counters: func(ctx context.Context) ([]net.IOCountersStat, error) {
			return net.IOCountersWithContext(ctx, true)
		},
	}
}

// Collect gathers CPU (one-second sample), memory, root disk, network and
// the busiest processes.
func (c *Collector) Collect(ctx context.Context) (*models.HealthSnapshot, error) {
	cpuPcts, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	cpuPct := 0.0
	if len(cpuPcts) > 0 {
		cpuPct = cpuPcts[0]
	}
	cores, _ := cpu.CountsWithContext(ctx, true)

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	diskStat, err := disk.UsageWithContext(ctx, c.diskPath)
	if err != nil {
		return nil, fmt.Errorf("disk %s: %w", c.diskPath, err)
	}

	network, err := c.network(ctx)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	procs, err := topProcesses(ctx, maxProcesses)
	if err != nil {
		return nil, fmt.Errorf("processes: %w", err)
	}

	hostname, _ := os.Hostname()
	uptime, _ := host.UptimeWithContext(ctx)

	snap := &models.HealthSnapshot{
		Status:   "ok",
		Hostname: strings.TrimSpace(hostname),
		BootID:   c.bootID,
		Uptime:   uptime,
		CPU:      models.CPUStats{Usage: cpuPct, Cores: cores},
		Memory: models.UsageStats{
			Total: vmem.Total,
			Used:  vmem.Used,
			Usage: vmem.UsedPercent,
		},
		Disk: models.UsageStats{
			Total: diskStat.Total,
			Used:  diskStat.Used,
			Usage: diskStat.UsedPercent,
		},
		Network:   network,
		Processes: procs,
		Timestamp: c.now().UTC(),
	}
	// Load average is unavailable on some platforms.
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.CPU.Load1 = avg.Load1
	}
	return snap, nil
}

func (c *Collector) network(ctx context.Context) (models.NetworkStats, error) {
	counters, err := c.counters(ctx)
	if err != nil {
		return models.NetworkStats{}, err
	}
	now := c.now()

	cur := make(map[string]net.IOCountersStat, len(counters))
	for _, ic := range counters {
		if isLoopback(ic.Name) {
			continue
		}
		cur[ic.Name] = ic
	}

	c.mu.Lock()
	prev, prevTime := c.prevNet, c.prevTime
	c.prevNet, c.prevTime = cur, now
	c.mu.Unlock()

	stats := models.NetworkStats{Interfaces: interfaceRates(prev, cur, now.Sub(prevTime))}
	for _, ic := range cur {
		stats.BytesSent += ic.BytesSent
		stats.BytesRecv += ic.BytesRecv
	}
	for _, r := range stats.Interfaces {
		stats.InBytesPerSec += r.RxMBps * bytesPerMB
		stats.OutBytesPerSec += r.TxMBps * bytesPerMB
	}
	return stats, nil
}

// interfaceRates returns MB/s per interface, sorted by name. Interfaces
// without a previous sample, and counters that went backwards, report 0.
func interfaceRates(prev, cur map[string]net.IOCountersStat, elapsed time.Duration) []models.InterfaceRate {
	rates := make([]models.InterfaceRate, 0, len(cur))
	secs := elapsed.Seconds()
	for name, ic := range cur {
		r := models.InterfaceRate{
			Name:      name,
			BytesRecv: ic.BytesRecv,
			BytesSent: ic.BytesSent,
		}
		if p, ok := prev[name]; ok && secs > 0 {
			r.RxMBps = delta(p.BytesRecv, ic.BytesRecv) / secs / bytesPerMB
			r.TxMBps = delta(p.BytesSent, ic.BytesSent) / secs / bytesPerMB
		}
		rates = append(rates, r)
	}
	sortRates(rates)
	return rates
}

func delta(prev, cur uint64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}

func isLoopback(name string) bool {
	return name == "lo" || strings.HasPrefix(name, "lo0") || strings.HasPrefix(strings.ToLower(name), "loopback")
}
