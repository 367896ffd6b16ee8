package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"
)

// Type opens a keyboard stream on a running bridge and types text through it.
type Type struct {
	Client ClientConfig  `embed:"" prefix:"api."`
	Name   string        `help:"Keyboard name reported in the link status" default:"kbbridge type"`
	Hold   time.Duration `help:"How long each key is held before release" default:"40ms"`
	Enter  bool          `help:"Press Enter after the text"`
	Text   []string      `arg:"" help:"Text to type; arguments are joined with spaces"`
}

func (t *Type) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	text := strings.Join(t.Text, " ")
	if t.Enter {
		text += "\n"
	}

	ks, err := t.Client.client().OpenKeyboard(ctx, t.Name)
	if err != nil {
		return err
	}
	defer ks.Close()
	logger.Debug("keyboard stream open", "session", ks.Session, "chars", len(text))

	if err := ks.Type(ctx, text, t.Hold); err != nil {
		return err
	}
	// Give the bridge a moment to emit the last release before the link closes.
	return sleepCtx(ctx, t.Hold)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
