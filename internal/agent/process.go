package agent

import (
	"context"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/coresight/coresight/internal/models"
)

// maxProcesses caps the process list carried by one report.
const maxProcesses = 50

// topProcesses returns the n processes using the most CPU. Processes that
// exit mid-scan are skipped.
func topProcesses(ctx context.Context, n int) ([]models.ProcessReport, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]models.ProcessReport, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		// Skip kernel threads (Linux)
		if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		user, _ := p.UsernameWithContext(ctx)
		list = append(list, models.ProcessReport{
			PID:        p.Pid,
			Name:       name,
			CPUPercent: cpuPct,
			MemPercent: float64(memPct),
			Username:   user,
		})
	}
	return topByCPU(list, n), nil
}

// topByCPU orders by CPU then memory, highest first, and keeps n entries.
func topByCPU(list []models.ProcessReport, n int) []models.ProcessReport {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CPUPercent != list[j].CPUPercent {
			return list[i].CPUPercent > list[j].CPUPercent
		}
		return list[i].MemPercent > list[j].MemPercent
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
