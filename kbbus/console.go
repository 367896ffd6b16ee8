package kbbus

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// EdgesPerFrame is the number of falling clock edges in one byte transaction.
const EdgesPerFrame = 11

var (
	ErrNoSync   = errors.New("kbbus: data line not raised for sync")
	ErrStartBit = errors.New("kbbus: start bit was high")
	ErrStopBit  = errors.New("kbbus: stop bit was low")
)

// Edger handles a falling clock edge.
type Edger interface {
	Advance() Level
}

// Console models the receiving console: it is the Line the transmitter drives,
// and it generates clock edges whenever it sees SYNC, sampling the data line
// after each edge the way the console's keyboard controller does.
type Console struct {
	level atomic.Bool

	// OnByte is called for every correctly framed byte received by Run.
	OnByte func(b byte)
	// OnFrameError is called for every framing error seen by Run.
	OnFrameError func(err error)
}

// NewConsole returns a console with the data line low.
func NewConsole() *Console { return &Console{} }

// Set implements Line.
func (c *Console) Set(high bool) { c.level.Store(high) }

// Level returns the current data line level.
func (c *Console) Level() Level { return Level(c.level.Load()) }

// frame accumulates the samples of one transaction.
type frame struct {
	edge int
	b    byte
	err  error
}

// sample records the line level seen after the frame's next edge and reports
// whether the frame is complete.
func (f *frame) sample(lvl Level) bool {
	f.edge++
	switch {
	case f.edge == 1:
		if lvl != Low {
			f.err = ErrStartBit
		}
	case f.edge <= 9:
		if lvl == High {
			f.b |= 1 << (f.edge - 2)
		}
	case f.edge == 10:
		if lvl != High && f.err == nil {
			f.err = ErrStopBit
		}
	}
	return f.edge == EdgesPerFrame
}

// Frame clocks one transaction through tx and returns the byte received.
// SYNC must already be asserted.
func (c *Console) Frame(tx Edger) (byte, error) {
	if c.Level() != High {
		return 0, ErrNoSync
	}
	var f frame
	for {
		tx.Advance()
		if f.sample(c.Level()) {
			return f.b, f.err
		}
	}
}

// Drain clocks frames for as long as SYNC keeps being asserted and returns
// everything received. It stops at the first framing error.
func (c *Console) Drain(tx Edger) ([]byte, error) {
	var out []byte
	for c.Level() == High {
		b, err := c.Frame(tx)
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Run clocks the bus with one falling edge per period until ctx is done,
// starting a transaction whenever SYNC is seen. Advance is only ever called
// from the goroutine running Run, mirroring a single interrupt source.
func (c *Console) Run(ctx context.Context, tx Edger, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var (
		f      frame
		active bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !active {
			if c.Level() != High {
				continue
			}
			f, active = frame{}, true
		}

		tx.Advance()
		if !f.sample(c.Level()) {
			continue
		}
		active = false
		if f.err != nil {
			if c.OnFrameError != nil {
				c.OnFrameError(f.err)
			}
			continue
		}
		if c.OnByte != nil {
			c.OnByte(f.b)
		}
	}
}
