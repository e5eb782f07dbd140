// Package resource supplies the host-pressure signal the dispatcher polls
// before admitting new fetches.
package resource

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MemoryMonitor reports overload when the process heap crosses a limit.
// It samples in the background so Overloaded itself is a cheap atomic read,
// and it resumes only once usage falls below a fraction of the limit so the
// dispatcher does not flap at the boundary.
type MemoryMonitor struct {
	limitBytes  uint64
	resumeBytes uint64
	interval    time.Duration
	logger      *zap.Logger

	overloaded atomic.Bool
}

// NewMemoryMonitor creates a monitor that trips at limitBytes of heap usage
// and clears at 80% of it. A limit of zero disables the monitor.
func NewMemoryMonitor(limitBytes uint64, interval time.Duration, logger *zap.Logger) *MemoryMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &MemoryMonitor{
		limitBytes:  limitBytes,
		resumeBytes: limitBytes / 5 * 4,
		interval:    interval,
		logger:      logger,
	}
}

// Start samples heap usage until ctx is canceled.
func (m *MemoryMonitor) Start(ctx context.Context) {
	if m.limitBytes == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

func (m *MemoryMonitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	switch {
	case !m.overloaded.Load() && stats.HeapAlloc >= m.limitBytes:
		m.overloaded.Store(true)
		m.logger.Warn("memory pressure: pausing admission",
			zap.Uint64("heap_bytes", stats.HeapAlloc),
			zap.Uint64("limit_bytes", m.limitBytes))
	case m.overloaded.Load() && stats.HeapAlloc <= m.resumeBytes:
		m.overloaded.Store(false)
		m.logger.Info("memory pressure cleared: resuming admission",
			zap.Uint64("heap_bytes", stats.HeapAlloc))
	}
}

// Overloaded reports the most recent sample's verdict.
func (m *MemoryMonitor) Overloaded() bool {
	return m.overloaded.Load()
}

// Noop never reports overload, for configs with adaptivity disabled.
type Noop struct{}

// Overloaded always returns false.
func (Noop) Overloaded() bool { return false }
