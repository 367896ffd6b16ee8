// Package monitor logs the bridge status on a fixed interval so long-running
// installs leave a trail of queue and link health.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sharkwire/kbbridge/bridge"
	"github.com/sharkwire/kbbridge/internal/status"
	"github.com/sharkwire/kbbridge/link"
)

// Config controls the status log. A zero interval disables it.
type Config struct {
	Interval time.Duration `help:"Interval between status log lines (0 disables)" default:"1m" env:"KBBRIDGE_MONITOR_INTERVAL"`
}

// Monitor runs the periodic status job.
type Monitor struct {
	sched  gocron.Scheduler
	b      *bridge.Bridge
	s      *link.Session
	logger *slog.Logger

	mu          sync.Mutex
	lastDropped uint64
}

// New schedules the status job. Call Start to begin running it.
func New(cfg Config, b *bridge.Bridge, s *link.Session, logger *slog.Logger) (*Monitor, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor interval must be positive, got %s", cfg.Interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	m := &Monitor{sched: sched, b: b, s: s, logger: logger}
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(m.report),
		gocron.WithName("status"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule status job: %w", err)
	}
	return m, nil
}

func (m *Monitor) Start() { m.sched.Start() }

// Stop waits for a running job and stops the scheduler.
func (m *Monitor) Stop() error { return m.sched.Shutdown() }

func (m *Monitor) report() {
	st := status.Collect(m.b, m.s)
	m.logger.Info("bridge status",
		"connected", st.Link.Connected,
		"manufacturer", st.Link.Manufacturer,
		"battery", st.Link.Battery,
		"held", len(st.Keys.Held),
		"queue", st.Bus.QueueDepth,
		"sent", st.Bus.Sent,
		"dropped", st.Keys.Dropped,
	)

	m.mu.Lock()
	newDrops := st.Keys.Dropped - m.lastDropped
	m.lastDropped = st.Keys.Dropped
	m.mu.Unlock()
	if newDrops > 0 {
		m.logger.Warn("scancodes dropped since last status", "count", newDrops)
	}
}
