// Package repeat turns key-state snapshots into MAKE/BREAK scancode traffic,
// including typematic repeat and synthetic shift bracketing.
package repeat

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sharkwire/kbbridge/keystate"
	"github.com/sharkwire/kbbridge/scancode"
	"github.com/sharkwire/kbbridge/usage"
)

const (
	DefaultRepeatDelay    = 25 // ticks
	DefaultRepeatInterval = 5  // ticks
)

// ReleaseMode selects which scancode a BREAK (and a repeat) carries.
type ReleaseMode int

const (
	// ReleaseAtPress reuses the scancode sent when the key went down, so the
	// receiver always sees a BREAK matching its MAKE.
	ReleaseAtPress ReleaseMode = iota
	// ReleaseAtCurrent resolves the scancode with the shift state of the tick
	// that emits it, as the original adapter does.
	ReleaseAtCurrent
)

func (m ReleaseMode) String() string {
	switch m {
	case ReleaseAtPress:
		return "press"
	case ReleaseAtCurrent:
		return "current"
	default:
		return fmt.Sprintf("ReleaseMode(%d)", int(m))
	}
}

// ParseReleaseMode parses "press" or "current".
func ParseReleaseMode(s string) (ReleaseMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "press", "":
		return ReleaseAtPress, nil
	case "current":
		return ReleaseAtCurrent, nil
	default:
		return 0, fmt.Errorf("unknown release mode %q (want press or current)", s)
	}
}

// Config controls typematic timing. Delay and interval are counted in ticks.
type Config struct {
	// RepeatDelay is how many ticks a key is held before it starts repeating.
	// Zero disables repeat.
	RepeatDelay uint32
	// RepeatInterval is the number of ticks between repeats. Values below one
	// are treated as one.
	RepeatInterval uint32
	Release        ReleaseMode
	// Table defaults to scancode.Default.
	Table *scancode.Table
}

// StateSource provides the held-key snapshot for a tick.
type StateSource interface {
	Snapshot() keystate.Snapshot
}

// Emitter receives scancode bytes in bus order. Emit reports false when the
// byte could not be queued.
type Emitter interface {
	Emit(b byte) bool
}

// holdCounters counts the ticks each usage code has been held.
type holdCounters [256]uint32

func (h *holdCounters) get(code uint8) uint32 { return h[code] }

func (h *holdCounters) inc(code uint8) {
	if h[code] != ^uint32(0) {
		h[code]++
	}
}

func (h *holdCounters) clear(code uint8) { h[code] = 0 }

// Stats are cumulative event counts. Safe to read from any goroutine.
type Stats struct {
	Presses  uint64
	Repeats  uint64
	Releases uint64
	Dropped  uint64
}

// Scheduler runs the per-tick key processing. Tick must be called from a
// single goroutine.
type Scheduler struct {
	cfg Config
	src StateSource
	out Emitter

	ticks     holdCounters
	pressed   [256]uint8 // scancode sent at press time
	shiftSent bool

	presses  atomic.Uint64
	repeats  atomic.Uint64
	releases atomic.Uint64
	dropped  atomic.Uint64
}

// New returns a scheduler reading src and writing to out.
func New(cfg Config, src StateSource, out Emitter) *Scheduler {
	if cfg.RepeatInterval < 1 {
		cfg.RepeatInterval = 1
	}
	if cfg.Table == nil {
		cfg.Table = &scancode.Default
	}
	return &Scheduler{cfg: cfg, src: src, out: out}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Stats returns the event counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Presses:  s.presses.Load(),
		Repeats:  s.repeats.Load(),
		Releases: s.releases.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// Tick processes one period: presses and repeats for held keys, BREAKs for
// released keys, then the shift BREAK if shift went away.
func (s *Scheduler) Tick() {
	snap := s.src.Snapshot()

	var held [256]bool
	for _, key := range snap.Keys {
		if key == usage.NoKey || held[key] {
			continue
		}
		held[key] = true

		n := s.ticks.get(key)
		switch {
		case n == 0:
			s.press(key, snap.Shift)
		case s.repeatDue(n):
			if code := s.resolve(key, snap.Shift); code != scancode.None {
				s.emitCode(code)
				s.repeats.Add(1)
			}
		}
		s.ticks.inc(key)
	}

	for i := 0; i < len(s.ticks); i++ {
		key := uint8(i)
		if held[key] || s.ticks.get(key) == 0 {
			continue
		}
		if code := s.resolve(key, snap.Shift); code != scancode.None {
			s.emit(scancode.Break)
			s.emitCode(code)
			s.releases.Add(1)
		}
		s.ticks.clear(key)
		s.pressed[key] = scancode.None
	}

	if !snap.Shift && s.shiftSent {
		s.emit(scancode.Break)
		s.emit(scancode.ShiftMake)
		s.shiftSent = false
	}
}

func (s *Scheduler) press(key uint8, shift bool) {
	code := s.cfg.Table.Translate(key, shift)
	s.pressed[key] = code
	if code == scancode.None {
		return
	}
	if shift && !s.shiftSent {
		s.emit(scancode.ShiftMake)
		s.shiftSent = true
	}
	s.emitCode(code)
	s.presses.Add(1)
}

func (s *Scheduler) repeatDue(n uint32) bool {
	d := s.cfg.RepeatDelay
	return d > 0 && n >= d && (n-d)%s.cfg.RepeatInterval == 0
}

func (s *Scheduler) resolve(key uint8, shift bool) uint8 {
	if s.cfg.Release == ReleaseAtCurrent {
		return s.cfg.Table.Translate(key, shift)
	}
	return s.pressed[key]
}

// emitCode sends code with its extended prefix when it needs one.
func (s *Scheduler) emitCode(code uint8) {
	if scancode.NeedsExtended(code) {
		s.emit(scancode.Extended)
	}
	s.emit(code)
}

func (s *Scheduler) emit(b byte) {
	if !s.out.Emit(b) {
		s.dropped.Add(1)
	}
}
