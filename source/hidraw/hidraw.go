// Package hidraw reads boot-protocol keyboard reports from a Linux hidraw
// node. When the keyboard goes away the link is closed, releasing every key,
// and the source waits for the node to come back.
package hidraw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sharkwire/kbbridge/keystate"
	"github.com/sharkwire/kbbridge/link"
	"github.com/sharkwire/kbbridge/source"
)

// maxReportLen is larger than any keyboard report we accept.
const maxReportLen = 64

func init() {
	source.Register("hidraw", func(cfg source.Config, logger *slog.Logger) (source.Source, error) {
		if cfg.Device == "" {
			return nil, fmt.Errorf("hidraw source needs --source.device")
		}
		return New(cfg.Device, cfg.Retry, OpenDevice, logger), nil
	})
}

// Device is an open report stream with the name the keyboard reported.
type Device struct {
	io.ReadCloser
	Name string
}

// Opener opens the device at path.
type Opener func(path string) (*Device, error)

// Hidraw is a reconnecting hidraw source.
type Hidraw struct {
	path   string
	retry  time.Duration
	open   Opener
	logger *slog.Logger
}

// New returns a source reading path, polling every retry while the device is
// absent.
func New(path string, retry time.Duration, open Opener, logger *slog.Logger) *Hidraw {
	if retry <= 0 {
		retry = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hidraw{path: path, retry: retry, open: open, logger: logger.With("device", path)}
}

// Run implements source.Source.
func (h *Hidraw) Run(ctx context.Context, session *link.Session) error {
	for ctx.Err() == nil {
		dev, err := h.open(h.path)
		if err != nil {
			h.logger.Info("waiting for keyboard", "error", err)
			if err := h.waitForDevice(ctx); err != nil {
				return nil
			}
			continue
		}

		err = h.serve(ctx, dev, session)
		_ = dev.Close()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, link.ErrBusy) {
			// Another client holds the link; the device is reopened once it
			// lets go so no stale reports are replayed.
			h.logger.Info("keyboard link busy, waiting", "error", err)
		} else {
			h.logger.Warn("keyboard lost", "error", err)
		}
		if err := sleep(ctx, h.retry); err != nil {
			return nil
		}
	}
	return nil
}

// serve owns one connected device until it fails or ctx ends.
func (h *Hidraw) serve(ctx context.Context, dev *Device, session *link.Session) error {
	id, err := session.Open(dev.Name)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close(id) }()

	stop := context.AfterFunc(ctx, func() { _ = dev.Close() })
	defer stop()

	buf := make([]byte, maxReportLen)
	for {
		n, err := dev.Read(buf)
		if n > 0 {
			err := session.Input(id, buf[:n])
			switch {
			case err == nil:
			case errors.Is(err, keystate.ErrShortReport):
				h.logger.Debug("ignoring report", "len", n, "error", err)
			case errors.Is(err, link.ErrNotConnected), errors.Is(err, link.ErrStaleSession):
				// Reset through the control API; keep the device.
				if id, err = session.Open(dev.Name); err != nil {
					return err
				}
				if err := session.Input(id, buf[:n]); err != nil {
					h.logger.Debug("ignoring report", "len", n, "error", err)
				}
			default:
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("device closed")
			}
			return err
		}
	}
}

// waitForDevice blocks until the device node exists, ctx is done, or one
// retry interval passes.
func (h *Hidraw) waitForDevice(ctx context.Context) error {
	if _, err := os.Stat(h.path); err == nil {
		return sleep(ctx, h.retry)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return sleep(ctx, h.retry)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		h.logger.Debug("cannot watch device directory", "error", err)
		return sleep(ctx, h.retry)
	}

	t := time.NewTimer(h.retry)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == filepath.Clean(h.path) && ev.Has(fsnotify.Create) {
				h.logger.Info("keyboard device appeared")
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.logger.Debug("device watch error", "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
