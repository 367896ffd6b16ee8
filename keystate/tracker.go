// Package keystate keeps the latest snapshot of which keys the wireless
// keyboard reports as held.
package keystate

import (
	"errors"
	"sync"

	"github.com/sharkwire/kbbridge/usage"
)

// MaxKeys is the number of key slots in a boot keyboard report.
const MaxKeys = 6

// fullReportLen is the length of a report that carries the reserved byte.
const fullReportLen = 8

// ErrShortReport is returned for reports too short to carry a modifier byte.
var ErrShortReport = errors.New("keystate: report too short")

// Snapshot is a consistent copy of the held keys and shift state.
type Snapshot struct {
	Keys  [MaxKeys]uint8
	Shift bool
}

// Held returns the non-empty key slots.
func (s Snapshot) Held() []uint8 {
	out := make([]uint8, 0, MaxKeys)
	for _, k := range s.Keys {
		if k != usage.NoKey {
			out = append(out, k)
		}
	}
	return out
}

// Tracker holds the HeldKeySet and ShiftState. Input sources write it and the
// repeat scheduler reads it, possibly from different goroutines.
type Tracker struct {
	mu    sync.Mutex
	state Snapshot
}

// New returns an empty tracker.
func New() *Tracker { return &Tracker{} }

// KeyOffset returns where the usage slots start in a report of length n.
//
// The link layer does not hand over the report descriptor, so this is a
// heuristic: full 8-byte reports carry a reserved byte after the modifiers,
// shorter ones put the keys right after the modifier byte.
func KeyOffset(n int) int {
	if n >= fullReportLen {
		return 2
	}
	return 1
}

// ParseReport decodes a raw keyboard input report without touching any state.
func ParseReport(report []byte) (Snapshot, error) {
	var s Snapshot
	if len(report) < 1 {
		return s, ErrShortReport
	}
	s.Shift = report[0]&usage.ModShift != 0
	off := KeyOffset(len(report))
	for i := 0; i < MaxKeys && off+i < len(report); i++ {
		s.Keys[i] = report[off+i]
	}
	return s, nil
}

// OnInputReport replaces the held state with the content of report. Malformed
// reports are rejected and leave the previous state in place.
func (t *Tracker) OnInputReport(report []byte) error {
	s, err := ParseReport(report)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	return nil
}

// Update sets the state from an already decoded modifier byte and key slots.
// Slots beyond MaxKeys are ignored.
func (t *Tracker) Update(modifiers uint8, keys []uint8) {
	var s Snapshot
	s.Shift = modifiers&usage.ModShift != 0
	copy(s.Keys[:], keys)
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Reset clears every held key and the shift flag. The link layer calls it on
// disconnect so the next scheduler tick releases everything.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = Snapshot{}
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
