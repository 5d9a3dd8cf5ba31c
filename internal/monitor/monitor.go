// Package monitor samples the hub process's own resource usage and
// publishes it into the shared variable store as read-only variables,
// so any connected client can poll the hub's health over the normal
// variable protocol.
package monitor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/manta-auv/hub/internal/logbook"
	"github.com/manta-auv/hub/internal/vars"
)

// Variables published by the monitor.
const (
	VarCPU    = "hub.cpu"    // process CPU utilization, percent
	VarMemory = "hub.mem"    // resident set size, MiB
	VarUptime = "hub.uptime" // seconds since the monitor started
)

// Definitions returns the read-only variable definitions the monitor
// publishes into. Register them when building the store.
func Definitions() []vars.Definition {
	return []vars.Definition{
		{Name: VarCPU, ReadOnly: true},
		{Name: VarMemory, ReadOnly: true},
		{Name: VarUptime, ReadOnly: true},
	}
}

// Monitor periodically refreshes the hub.* variables.
type Monitor struct {
	store    *vars.Store
	lb       *logbook.Logbook
	interval time.Duration
	proc     *process.Process
	started  time.Time
}

func New(store *vars.Store, lb *logbook.Logbook, interval time.Duration) (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	return &Monitor{
		store:    store,
		lb:       lb,
		interval: interval,
		proc:     proc,
		started:  time.Now(),
	}, nil
}

// Run samples on a fixed ticker until ctx is canceled. A failed sample
// leaves the previous values in place.
func (m *Monitor) Run(ctx context.Context) {
	m.lb.Logf("monitor", logbook.Debug, "sampling resource usage every %v", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	if pct, err := m.proc.CPUPercent(); err == nil {
		m.store.Put(VarCPU, pct)
	} else {
		m.lb.Logf("monitor", logbook.Warning, "cpu sample failed: %v", err)
	}
	if info, err := m.proc.MemoryInfo(); err == nil {
		m.store.Put(VarMemory, float64(info.RSS)/1024/1024)
	} else {
		m.lb.Logf("monitor", logbook.Warning, "memory sample failed: %v", err)
	}
	m.store.Put(VarUptime, time.Since(m.started).Seconds())
}
