//go:build tinygo && rp2040

// Command kbbridge-fw is the microcontroller build of the bridge. Characters
// typed on the USB serial console become key presses; the console's keyboard
// controller clocks the scancodes out on the bus pins.
package main

import (
	"machine"
	"time"

	"github.com/sharkwire/kbbridge/kbbus"
	"github.com/sharkwire/kbbridge/keystate"
	"github.com/sharkwire/kbbridge/repeat"
	"github.com/sharkwire/kbbridge/txqueue"
	"github.com/sharkwire/kbbridge/usage"
	"github.com/sharkwire/kbbridge/usage/vt"
)

const (
	dataPin  = machine.GP2
	clockPin = machine.GP3

	tickPeriod = 20 * time.Millisecond
	// holdTicks is how long a typed character stays pressed.
	holdTicks = 2
	// escTicks is how long a lone ESC waits for the rest of a sequence.
	escTicks = 1
)

// pinLine drives the bus data line.
type pinLine struct{ pin machine.Pin }

func (l pinLine) Set(high bool) { l.pin.Set(high) }

type emitter struct {
	tx      *kbbus.Transmitter
	dropped uint32
}

func (e *emitter) Emit(b byte) bool {
	if e.tx.Send(b) {
		return true
	}
	e.dropped++
	return false
}

// typist turns decoded strokes into press and release reports spread over
// ticks, so each character reaches the scheduler as a held key.
type typist struct {
	tracker *keystate.Tracker
	pending [32]usage.Stroke
	head    int
	n       int
	held    int // ticks left on the current press, -1 when released
	gap     bool
}

func (t *typist) push(s usage.Stroke) {
	if t.n == len(t.pending) {
		println("kbbridge: typeahead full, dropping key")
		return
	}
	t.pending[(t.head+t.n)%len(t.pending)] = s
	t.n++
}

func (t *typist) tick() {
	switch {
	case t.held > 0:
		t.held--
		return
	case t.held == 0:
		_ = t.tracker.OnInputReport(vt.ReleaseReport())
		t.held = -1
		t.gap = true
		return
	case t.gap:
		// One idle tick between characters so repeated letters get a BREAK.
		t.gap = false
		return
	}
	if t.n == 0 {
		return
	}
	s := t.pending[t.head]
	t.head = (t.head + 1) % len(t.pending)
	t.n--
	_ = t.tracker.OnInputReport(vt.PressReport(s))
	t.held = holdTicks
}

func main() {
	dataPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dataPin.Low()
	clockPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	tx := kbbus.NewTransmitter(txqueue.New(txqueue.DefaultCapacity), pinLine{dataPin})
	if err := clockPin.SetInterrupt(machine.PinFalling, func(machine.Pin) { tx.Advance() }); err != nil {
		println("kbbridge: clock interrupt:", err.Error())
		for {
			time.Sleep(time.Second)
		}
	}

	tracker := keystate.New()
	out := &emitter{tx: tx}
	sched := repeat.New(repeat.Config{
		RepeatDelay:    repeat.DefaultRepeatDelay,
		RepeatInterval: repeat.DefaultRepeatInterval,
		Release:        repeat.ReleaseAtPress,
	}, tracker, out)

	ty := &typist{tracker: tracker, held: -1}
	serial := machine.Serial
	var (
		dec      vt.Decoder
		escWait  int
		lastDrop uint32
	)

	println("kbbridge: ready")
	for {
		for serial.Buffered() > 0 {
			b, err := serial.ReadByte()
			if err != nil {
				break
			}
			if s, ok := dec.Feed(b); ok {
				ty.push(s)
			}
			escWait = escTicks
		}
		if dec.Pending() {
			if escWait == 0 {
				if s, ok := dec.Flush(); ok {
					ty.push(s)
				}
			} else {
				escWait--
			}
		}

		ty.tick()
		sched.Tick()

		if out.dropped != lastDrop {
			println("kbbridge: transmit queue full, dropped", out.dropped-lastDrop)
			lastDrop = out.dropped
		}
		time.Sleep(tickPeriod)
	}
}
