// Package kbbus drives scancodes onto the console keyboard bus.
//
// The console owns the clock. The adapter raises DATA (SYNC) when it has a byte,
// after which the console produces 11 falling clock edges per byte:
//
//	edge 1     start bit (DATA low)
//	edges 2-9  data bits, least significant first
//	edge 10    stop bit (DATA high)
//	edge 11    return to idle (DATA low), or SYNC again if more bytes wait
//
// Transmitter.Advance is the falling-edge handler. It runs in interrupt context
// on hardware, so it never allocates, blocks or logs.
package kbbus

import (
	"sync/atomic"

	"github.com/sharkwire/kbbridge/txqueue"
)

// Level is a logic level on the data line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Line is the data-out pin. machine.Pin satisfies it on TinyGo targets.
type Line interface {
	Set(high bool)
}

// State is the progress of the transaction in flight.
type State uint32

const (
	Idle State = iota
	StartBit
	DataBits
	StopBit
	Finalize
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case StartBit:
		return "start"
	case DataBits:
		return "data"
	case StopBit:
		return "stop"
	case Finalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Transmitter is the bit-level state machine. Send is called from task context,
// Advance from the clock interrupt. The queue tail is only ever moved by Advance.
type Transmitter struct {
	queue *txqueue.Ring
	line  Line

	state atomic.Uint32

	// interrupt-owned
	cur byte
	bit uint8

	sent     atomic.Uint64
	spurious atomic.Uint64
}

// NewTransmitter returns an idle transmitter and drives line to the idle level.
func NewTransmitter(queue *txqueue.Ring, line Line) *Transmitter {
	t := &Transmitter{queue: queue, line: line}
	line.Set(false)
	return t
}

// Queue returns the backlog the transmitter drains.
func (t *Transmitter) Queue() *txqueue.Ring { return t.queue }

// State returns the current state.
func (t *Transmitter) State() State { return State(t.state.Load()) }

// Sent returns the number of bytes fully clocked out.
func (t *Transmitter) Sent() uint64 { return t.sent.Load() }

// Spurious returns the number of clock edges seen while idle.
func (t *Transmitter) Spurious() uint64 { return t.spurious.Load() }

// Send queues b and raises SYNC if the bus was idle. It returns false when the
// backlog is full and b was dropped.
func (t *Transmitter) Send(b byte) bool {
	if !t.queue.Push(b) {
		return false
	}
	t.Sync()
	return true
}

// Sync asserts SYNC when the transmitter is idle and the backlog is not empty.
// It reports whether this call started a transaction.
func (t *Transmitter) Sync() bool {
	if t.queue.Empty() {
		return false
	}
	if !t.state.CompareAndSwap(uint32(Idle), uint32(StartBit)) {
		return false
	}
	t.line.Set(true)
	return true
}

// Advance handles one falling clock edge and returns the level left on the line.
func (t *Transmitter) Advance() Level {
	switch State(t.state.Load()) {
	case StartBit:
		b, ok := t.queue.Pop()
		t.line.Set(false)
		if !ok {
			t.state.Store(uint32(Idle))
			return Low
		}
		t.cur = b
		t.bit = 0
		t.state.Store(uint32(DataBits))
		return Low

	case DataBits:
		lvl := Level((t.cur>>t.bit)&1 == 1)
		t.line.Set(bool(lvl))
		t.bit++
		if t.bit >= 8 {
			t.state.Store(uint32(StopBit))
		}
		return lvl

	case StopBit:
		t.line.Set(true)
		t.state.Store(uint32(Finalize))
		return High

	case Finalize:
		t.line.Set(false)
		t.sent.Add(1)
		if !t.queue.Empty() {
			t.line.Set(true)
			t.state.Store(uint32(StartBit))
			return High
		}
		t.state.Store(uint32(Idle))
		// a Send that raced with the empty check above lost its CAS while we
		// were in Finalize; pick its byte up here
		if !t.queue.Empty() && t.state.CompareAndSwap(uint32(Idle), uint32(StartBit)) {
			t.line.Set(true)
			return High
		}
		return Low

	default:
		t.spurious.Add(1)
		return Low
	}
}
