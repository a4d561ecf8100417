package ctx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor periodically samples process-wide CPU and memory
// pressure on a background goroutine and logs when either crosses a
// configured threshold. It never touches the audio thread: a Context
// under memory or CPU pressure is still expected to keep ticking (spec
// §5's audio-thread rules forbid it from doing anything else), so this
// is purely an observability aid for the host application.
//
// Grounded on the teacher's internal/monitor.SystemMonitor: a
// context.CancelFunc-owned goroutine sampling gopsutil on a ticker and
// comparing against configured thresholds. Library: shirou/gopsutil/v3.
type ResourceMonitor struct {
	cpuWarnPercent float64
	memWarnPercent float64
	interval       time.Duration
	log            *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ResourceMonitorConfig configures a ResourceMonitor's thresholds and
// sampling cadence.
type ResourceMonitorConfig struct {
	CPUWarnPercent float64
	MemWarnPercent float64
	Interval       time.Duration
}

// NewResourceMonitor creates a ResourceMonitor. Call Start to begin
// sampling.
func NewResourceMonitor(cfg ResourceMonitorConfig, log *slog.Logger) *ResourceMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.CPUWarnPercent <= 0 {
		cfg.CPUWarnPercent = 90
	}
	if cfg.MemWarnPercent <= 0 {
		cfg.MemWarnPercent = 90
	}
	return &ResourceMonitor{
		cpuWarnPercent: cfg.CPUWarnPercent,
		memWarnPercent: cfg.MemWarnPercent,
		interval:       cfg.Interval,
		log:            log,
	}
}

// Start begins the sampling goroutine. Calling Start twice without an
// intervening Stop is a programming error; callers (in practice, just
// Context.Start) are expected to own the monitor's lifecycle.
func (m *ResourceMonitor) Start() {
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(runCtx)
}

func (m *ResourceMonitor) run(runCtx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			m.sample(runCtx)
		}
	}
}

func (m *ResourceMonitor) sample(runCtx context.Context) {
	if percents, err := cpu.PercentWithContext(runCtx, 0, false); err == nil && len(percents) > 0 {
		if percents[0] >= m.cpuWarnPercent {
			m.log.Warn("cpu usage above threshold", "percent", percents[0], "threshold", m.cpuWarnPercent)
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(runCtx); err == nil {
		if vm.UsedPercent >= m.memWarnPercent {
			m.log.Warn("memory usage above threshold", "percent", vm.UsedPercent, "threshold", m.memWarnPercent)
		}
	}
}

// Stop cancels the sampling goroutine and waits for it to exit.
func (m *ResourceMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
