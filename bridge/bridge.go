// Package bridge wires the key-state tracker, repeat scheduler, transmit
// queue and bus transmitter together and runs the scheduler tick.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sharkwire/kbbridge/kbbus"
	"github.com/sharkwire/kbbridge/keystate"
	"github.com/sharkwire/kbbridge/repeat"
	"github.com/sharkwire/kbbridge/txqueue"
)

// Bridge owns one keyboard pipeline. Only the queue and the transmitter are
// touched from the clock interrupt side.
type Bridge struct {
	cfg     Config
	logger  *slog.Logger
	tracker *keystate.Tracker
	queue   *txqueue.Ring
	tx      *kbbus.Transmitter
	sched   *repeat.Scheduler
	ticks   atomic.Uint64
}

// New builds a bridge driving line.
func New(cfg Config, line kbbus.Line, logger *slog.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		cfg:     cfg,
		logger:  logger,
		tracker: keystate.New(),
		queue:   txqueue.New(cfg.QueueCapacity),
	}
	b.tx = kbbus.NewTransmitter(b.queue, line)
	b.sched = repeat.New(cfg.schedulerConfig(), b.tracker, emitter{b})
	return b, nil
}

// emitter hands scheduler output to the transmitter.
type emitter struct{ b *Bridge }

func (e emitter) Emit(c byte) bool {
	if e.b.tx.Send(c) {
		return true
	}
	e.b.logger.Warn("transmit queue full, scancode dropped",
		"byte", fmt.Sprintf("0x%02x", c),
		"capacity", e.b.queue.Cap(),
	)
	return false
}

func (b *Bridge) Config() Config                  { return b.cfg }
func (b *Bridge) Tracker() *keystate.Tracker      { return b.tracker }
func (b *Bridge) Transmitter() *kbbus.Transmitter { return b.tx }
func (b *Bridge) Scheduler() *repeat.Scheduler    { return b.sched }

// Tick runs one scheduler period. Run calls it on every tick; tests and
// alternative drivers may call it directly, but never concurrently.
func (b *Bridge) Tick() {
	b.sched.Tick()
	b.ticks.Add(1)
}

// Run ticks the scheduler every cfg.Tick until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	t := time.NewTicker(b.cfg.Tick)
	defer t.Stop()

	b.logger.Info("bridge running",
		"tick", b.cfg.Tick,
		"repeatDelay", b.cfg.RepeatDelay,
		"repeatInterval", b.cfg.RepeatInterval,
		"queueCapacity", b.queue.Cap(),
		"releaseMode", b.cfg.ReleaseMode,
	)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge stopped", "ticks", b.ticks.Load())
			return nil
		case <-t.C:
			b.Tick()
		}
	}
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Ticks         uint64
	QueueDepth    int
	QueueCapacity int
	TxState       kbbus.State
	Sent          uint64
	Spurious      uint64
	Held          []uint8
	Shift         bool
	Keys          repeat.Stats
}

// Status collects the current counters. Safe to call from any goroutine.
func (b *Bridge) Status() Status {
	snap := b.tracker.Snapshot()
	return Status{
		Ticks:         b.ticks.Load(),
		QueueDepth:    b.queue.Len(),
		QueueCapacity: b.queue.Cap(),
		TxState:       b.tx.State(),
		Sent:          b.tx.Sent(),
		Spurious:      b.tx.Spurious(),
		Held:          snap.Held(),
		Shift:         snap.Shift,
		Keys:          b.sched.Stats(),
	}
}
