package repeat_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharkwire/kbbridge/keystate"
	"github.com/sharkwire/kbbridge/repeat"
	"github.com/sharkwire/kbbridge/scancode"
	"github.com/sharkwire/kbbridge/usage"
)

// capture records every emitted byte and can simulate a full queue.
type capture struct {
	out  []byte
	full bool
}

func (c *capture) Emit(b byte) bool {
	if c.full {
		return false
	}
	c.out = append(c.out, b)
	return true
}

func (c *capture) take() []byte {
	out := c.out
	c.out = nil
	return out
}

type harness struct {
	tr  *keystate.Tracker
	out *capture
	s   *repeat.Scheduler
}

func newHarness(cfg repeat.Config) *harness {
	h := &harness{tr: keystate.New(), out: &capture{}}
	h.s = repeat.New(cfg, h.tr, h.out)
	return h
}

func (h *harness) hold(mod uint8, keys ...uint8) { h.tr.Update(mod, keys) }

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.s.Tick()
	}
}

var defaultCfg = repeat.Config{RepeatDelay: 25, RepeatInterval: 5}

// repeatsPerTickRule counts the repeats for a key held for total ticks when a
// repeat fires on every tick whose hold counter is delay, delay+interval, ...
// and below total. This is ceil((total-delay)/interval), one more than the
// floor form whenever (total-delay) is not a multiple of interval.
func repeatsPerTickRule(total, delay, interval int) int {
	if delay == 0 || total <= delay {
		return 0
	}
	return (total-1-delay)/interval + 1
}

func TestHeldKeyScenario(t *testing.T) {
	h := newHarness(defaultCfg)
	h.hold(0, usage.KeyA)

	var perTick [][]byte
	for i := 0; i < 35; i++ {
		h.s.Tick()
		perTick = append(perTick, h.out.take())
	}

	for i, got := range perTick {
		switch i {
		case 0, 25, 30:
			assert.Equal(t, []byte{0x1C}, got, "tick %d", i)
		default:
			assert.Empty(t, got, "tick %d", i)
		}
	}

	presses := 1 + repeatsPerTickRule(35, 25, 5)
	assert.Equal(t, 3, presses)
	assert.Equal(t, uint64(presses-1), h.s.Stats().Repeats)

	h.hold(0)
	h.s.Tick()
	assert.Equal(t, []byte{scancode.Break, 0x1C}, h.out.take())
}

func TestRepeatCount(t *testing.T) {
	tests := []struct {
		name     string
		delay    uint32
		interval uint32
		held     int
	}{
		{name: "released before delay", delay: 25, interval: 5, held: 10},
		{name: "released at delay", delay: 25, interval: 5, held: 25},
		{name: "one past delay", delay: 25, interval: 5, held: 26},
		{name: "exact interval boundary", delay: 25, interval: 5, held: 35},
		{name: "long hold", delay: 25, interval: 5, held: 500},
		{name: "interval one", delay: 3, interval: 1, held: 12},
		{name: "repeat disabled", delay: 0, interval: 5, held: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(repeat.Config{RepeatDelay: tt.delay, RepeatInterval: tt.interval})
			h.hold(0, usage.KeyB)
			h.ticks(tt.held)
			h.hold(0)
			h.s.Tick()

			out := h.out.take()
			presses := bytes.Count(out, []byte{0x32}) - 1 // minus the BREAK's code
			assert.Equal(t, 1+repeatsPerTickRule(tt.held, int(tt.delay), int(tt.interval)), presses)
			assert.True(t, bytes.HasSuffix(out, []byte{scancode.Break, 0x32}))
			assert.Equal(t, 1, bytes.Count(out, []byte{scancode.Break}))
		})
	}
}

func TestExactlyOneReleasePerPress(t *testing.T) {
	h := newHarness(defaultCfg)
	for round := 0; round < 3; round++ {
		h.hold(0, usage.KeyC)
		h.ticks(4)
		h.hold(0)
		h.ticks(4)
	}
	out := h.out.take()
	assert.Equal(t, []byte{
		0x21, scancode.Break, 0x21,
		0x21, scancode.Break, 0x21,
		0x21, scancode.Break, 0x21,
	}, out)
	st := h.s.Stats()
	assert.Equal(t, uint64(3), st.Presses)
	assert.Equal(t, uint64(3), st.Releases)
}

func TestDeleteFraming(t *testing.T) {
	h := newHarness(repeat.Config{RepeatDelay: 2, RepeatInterval: 1})
	h.hold(0, usage.KeyDelete)
	h.s.Tick()
	assert.Equal(t, []byte{scancode.Extended, scancode.Delete}, h.out.take())

	h.s.Tick() // counter 1, nothing
	h.s.Tick() // counter 2, repeat
	assert.Equal(t, []byte{scancode.Extended, scancode.Delete}, h.out.take())

	h.hold(0)
	h.s.Tick()
	assert.Equal(t, []byte{scancode.Break, scancode.Extended, scancode.Delete}, h.out.take())
}

func TestDeleteAlwaysPrecededByExtended(t *testing.T) {
	h := newHarness(repeat.Config{RepeatDelay: 3, RepeatInterval: 2})
	h.hold(usage.ModLeftShift, usage.KeyDelete, usage.KeyA)
	h.ticks(20)
	h.hold(0, usage.KeyDelete)
	h.ticks(5)
	h.hold(0)
	h.ticks(2)

	out := h.out.take()
	require.NotEmpty(t, out)
	for i, b := range out {
		if b == scancode.Delete {
			require.Greater(t, i, 0)
			assert.Equal(t, scancode.Extended, out[i-1], "byte %d", i)
		}
	}
}

func TestShiftBracketing(t *testing.T) {
	h := newHarness(defaultCfg)

	h.hold(usage.ModLeftShift, usage.KeyA)
	h.s.Tick()
	assert.Equal(t, []byte{scancode.ShiftMake, 0x1C}, h.out.take())

	// second shifted key in the same hold session: no new shift MAKE
	h.hold(usage.ModLeftShift, usage.KeyA, usage.KeyB)
	h.s.Tick()
	assert.Equal(t, []byte{0x32}, h.out.take())

	h.hold(0)
	h.s.Tick()
	assert.Equal(t, []byte{
		scancode.Break, 0x1C,
		scancode.Break, 0x32,
		scancode.Break, scancode.ShiftMake,
	}, h.out.take())

	h.s.Tick()
	assert.Empty(t, h.out.take())
}

func TestShiftBracketingBalanced(t *testing.T) {
	h := newHarness(repeat.Config{RepeatDelay: 2, RepeatInterval: 1})
	pattern := []struct {
		mod  uint8
		keys []uint8
	}{
		{usage.ModRightShift, []uint8{usage.Key1}},
		{usage.ModRightShift, []uint8{usage.Key1, usage.Key2}},
		{0, []uint8{usage.Key2}},
		{usage.ModLeftShift, []uint8{usage.Key3}},
		{usage.ModLeftShift, nil},
		{0, nil},
		{usage.ModLeftShift | usage.ModRightShift, []uint8{usage.KeyZ}},
		{0, nil},
	}
	for _, p := range pattern {
		h.hold(p.mod, p.keys...)
		h.ticks(3)
	}
	out := h.out.take()

	makes := 0
	breaks := 0
	for i, b := range out {
		if b != scancode.ShiftMake {
			continue
		}
		if i > 0 && out[i-1] == scancode.Break {
			breaks++
		} else {
			makes++
		}
	}
	assert.Equal(t, 3, makes)
	assert.Equal(t, makes, breaks)
}

func TestShiftOnlyWithoutKeysEmitsNothing(t *testing.T) {
	h := newHarness(defaultCfg)
	h.hold(usage.ModLeftShift)
	h.ticks(5)
	h.hold(0)
	h.ticks(1)
	assert.Empty(t, h.out.take())
}

func TestUnmappedKeysAreIgnored(t *testing.T) {
	h := newHarness(repeat.Config{RepeatDelay: 1, RepeatInterval: 1})
	h.hold(usage.ModLeftShift, usage.KeyCapsLock, 0xE8)
	h.ticks(5)
	h.hold(0)
	h.ticks(1)
	assert.Empty(t, h.out.take())
}

func TestShiftedKeyWithoutShiftedMappingIsIgnored(t *testing.T) {
	h := newHarness(defaultCfg)
	h.hold(usage.ModLeftShift, usage.KeySpace)
	h.ticks(2)
	h.hold(0)
	h.ticks(1)
	assert.Empty(t, h.out.take())
}

func TestReleaseModes(t *testing.T) {
	tests := []struct {
		name string
		mode repeat.ReleaseMode
		want []byte
	}{
		{
			name: "break matches make",
			mode: repeat.ReleaseAtPress,
			want: []byte{0x29, scancode.ShiftMake, scancode.Break, 0x29, scancode.Break, scancode.ShiftMake},
		},
		{
			name: "break resolved with current shift",
			mode: repeat.ReleaseAtCurrent,
			// space has no shifted mapping, so no BREAK reaches the bus
			want: []byte{0x29, scancode.ShiftMake, scancode.Break, scancode.ShiftMake},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(repeat.Config{RepeatDelay: 100, RepeatInterval: 1, Release: tt.mode})
			h.hold(0, usage.KeySpace)
			h.s.Tick()
			// shift goes down with a new key while space is still held
			h.hold(usage.ModLeftShift, usage.KeySpace, usage.KeyQ)
			h.s.Tick()
			h.hold(usage.ModLeftShift, usage.KeyQ)
			h.s.Tick()
			h.hold(0)
			h.s.Tick()

			out := h.out.take()
			// drop the q traffic to focus on space and shift
			var filtered []byte
			for i := 0; i < len(out); i++ {
				if out[i] == 0x15 {
					if len(filtered) > 0 && filtered[len(filtered)-1] == scancode.Break {
						filtered = filtered[:len(filtered)-1]
					}
					continue
				}
				filtered = append(filtered, out[i])
			}
			assert.Equal(t, tt.want, filtered)
		})
	}
}

func TestDroppedBytesAreCounted(t *testing.T) {
	h := newHarness(defaultCfg)
	h.out.full = true
	h.hold(usage.ModLeftShift, usage.KeyDelete)
	h.s.Tick()
	assert.Equal(t, uint64(3), h.s.Stats().Dropped)
}

func TestDisconnectResetReleasesEverything(t *testing.T) {
	h := newHarness(defaultCfg)
	h.hold(usage.ModLeftShift, usage.KeyA, usage.KeyDelete)
	h.s.Tick()
	h.out.take()

	h.tr.Reset()
	h.s.Tick()
	assert.Equal(t, []byte{
		scancode.Break, 0x1C,
		scancode.Break, scancode.Extended, scancode.Delete,
		scancode.Break, scancode.ShiftMake,
	}, h.out.take())
}

func TestDuplicateSlotsCountOnce(t *testing.T) {
	h := newHarness(repeat.Config{RepeatDelay: 4, RepeatInterval: 2})
	h.hold(0, usage.KeyA, usage.KeyA)
	h.ticks(5)
	assert.Equal(t, []byte{0x1C, 0x1C}, h.out.take())
}

func TestParseReleaseMode(t *testing.T) {
	m, err := repeat.ParseReleaseMode("current")
	require.NoError(t, err)
	assert.Equal(t, repeat.ReleaseAtCurrent, m)

	m, err = repeat.ParseReleaseMode("")
	require.NoError(t, err)
	assert.Equal(t, repeat.ReleaseAtPress, m)

	_, err = repeat.ParseReleaseMode("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "press", repeat.ReleaseAtPress.String())
}
