// Package terminal is an input source that types characters received from a
// serial terminal or the local console. Every character becomes a press
// report followed by a release report, so the bridge emits the usual MAKE and
// BREAK traffic for it.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sharkwire/kbbridge/link"
	"github.com/sharkwire/kbbridge/usage"
	"github.com/sharkwire/kbbridge/usage/vt"
)

// ErrInterrupted is returned by Run when Ctrl-C is typed on a raw local
// terminal.
var ErrInterrupted = errors.New("terminal: interrupted")

const (
	ctrlC = 0x03
	// escTimeout is how long a lone ESC waits for the rest of a sequence.
	escTimeout = 10 * time.Millisecond
)

// Opener opens the byte stream a Terminal reads from.
type Opener func() (io.ReadCloser, error)

// Terminal reads characters and types them into a link session.
type Terminal struct {
	name   string
	open   Opener
	hold   time.Duration
	logger *slog.Logger

	// InterruptOnCtrlC makes a typed Ctrl-C end Run with ErrInterrupted.
	InterruptOnCtrlC bool
	// Retry is how often a busy link is polled.
	Retry time.Duration
}

// New returns a terminal source reporting itself to the link as name.
func New(name string, open Opener, hold time.Duration, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Terminal{name: name, open: open, hold: hold, logger: logger, Retry: time.Second}
}

// Run implements source.Source.
func (t *Terminal) Run(ctx context.Context, session *link.Session) error {
	rc, err := t.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", t.name, err)
	}
	id, err := t.openSession(ctx, session)
	if err != nil {
		_ = rc.Close()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	typer := &Typer{Session: session, ID: id, Hold: t.hold}
	defer func() { _ = session.Close(typer.ID) }()

	chunks := make(chan readResult, 4)
	stop := make(chan struct{})
	defer close(stop)
	go readLoop(rc, chunks, stop)
	defer rc.Close()

	var dec vt.Decoder
	escTimer := time.NewTimer(time.Hour)
	escTimer.Stop()
	defer escTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-escTimer.C:
			if s, ok := dec.Flush(); ok {
				if err := t.typeStroke(ctx, typer, s); err != nil {
					return err
				}
			}
		case r := <-chunks:
			for _, b := range r.data {
				if b == ctrlC && t.InterruptOnCtrlC {
					return ErrInterrupted
				}
				s, ok := dec.Feed(b)
				if dec.Pending() {
					escTimer.Reset(escTimeout)
				}
				if !ok {
					if !dec.Pending() {
						t.logger.Debug("unmapped terminal input", "byte", fmt.Sprintf("0x%02x", b))
					}
					continue
				}
				t.logger.Debug("terminal key", "key", usage.Name(s.Code), "shift", s.Shift)
				if err := t.typeStroke(ctx, typer, s); err != nil {
					return err
				}
			}
			if r.err == nil {
				continue
			}
			if s, ok := dec.Flush(); ok {
				if err := t.typeStroke(ctx, typer, s); err != nil {
					return err
				}
			}
			if errors.Is(r.err, io.EOF) {
				t.logger.Info("terminal input closed")
				return nil
			}
			return fmt.Errorf("read %s: %w", t.name, r.err)
		}
	}
}

type readResult struct {
	data []byte
	err  error
}

// readLoop forwards everything read from r, in order, until an error.
func readLoop(r io.Reader, out chan<- readResult, stop <-chan struct{}) {
	for {
		buf := make([]byte, 64)
		n, err := r.Read(buf)
		select {
		case out <- readResult{data: buf[:n], err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

// typeStroke types s, reopening the session once if it was reset from the
// control API in the meantime. Cancellation is not an error.
func (t *Terminal) typeStroke(ctx context.Context, typer *Typer, s usage.Stroke) error {
	err := typer.Type(ctx, s)
	if errors.Is(err, link.ErrNotConnected) || errors.Is(err, link.ErrStaleSession) {
		id, openErr := t.openSession(ctx, typer.Session)
		if openErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return openErr
		}
		t.logger.Info("terminal session reopened after link reset", "session", id)
		typer.ID = id
		err = typer.Type(ctx, s)
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// openSession opens the link as t.name, waiting while another client
// holds it.
func (t *Terminal) openSession(ctx context.Context, session *link.Session) (xid.ID, error) {
	for {
		id, err := session.Open(t.name)
		if !errors.Is(err, link.ErrBusy) {
			return id, err
		}
		t.logger.Info("keyboard link busy, waiting", "error", err)
		retry := t.Retry
		if retry <= 0 {
			retry = time.Second
		}
		if err := sleep(ctx, retry); err != nil {
			return xid.NilID(), err
		}
	}
}

// Typer presses and releases keystrokes through a link session, holding each
// one long enough for the scheduler to observe both edges.
type Typer struct {
	Session *link.Session
	ID      xid.ID
	Hold    time.Duration
}

// Type sends a press report, waits Hold, sends a release report and waits
// Hold again. It returns ctx.Err() if cancelled while waiting.
func (ty *Typer) Type(ctx context.Context, s usage.Stroke) error {
	if err := ty.Session.Input(ty.ID, vt.PressReport(s)); err != nil {
		return err
	}
	if err := sleep(ctx, ty.Hold); err != nil {
		_ = ty.Session.Input(ty.ID, vt.ReleaseReport())
		return err
	}
	if err := ty.Session.Input(ty.ID, vt.ReleaseReport()); err != nil {
		return err
	}
	return sleep(ctx, ty.Hold)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
