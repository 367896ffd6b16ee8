package terminal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/sharkwire/kbbridge/source"
)

func init() {
	source.Register("serial", newSerial)
	source.Register("terminal", newStdin)
}

func newSerial(cfg source.Config, logger *slog.Logger) (source.Source, error) {
	if cfg.SerialPort == "" {
		return nil, fmt.Errorf("serial source needs --source.serial-port")
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	open := func() (io.ReadCloser, error) {
		port, err := serial.Open(cfg.SerialPort, mode)
		if err != nil {
			return nil, err
		}
		logger.Info("serial terminal opened", "port", cfg.SerialPort, "baud", cfg.Baud)
		return port, nil
	}
	t := New("serial "+cfg.SerialPort, open, cfg.Hold, logger)
	if cfg.Retry > 0 {
		t.Retry = cfg.Retry
	}
	return t, nil
}

// rawStdin puts the local terminal into raw mode for the lifetime of the
// reader and restores it on Close.
type rawStdin struct {
	f       *os.File
	restore func()
}

func (r *rawStdin) Read(p []byte) (int, error) { return r.f.Read(p) }

func (r *rawStdin) Close() error {
	r.restore()
	return nil
}

func newStdin(cfg source.Config, logger *slog.Logger) (source.Source, error) {
	open := func() (io.ReadCloser, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			// Piped input is consumed as-is.
			return io.NopCloser(os.Stdin), nil
		}
		old, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("raw mode: %w", err)
		}
		logger.Info("typing from this terminal, Ctrl-C to stop")
		return &rawStdin{f: os.Stdin, restore: func() { _ = term.Restore(fd, old) }}, nil
	}
	t := New("terminal", open, cfg.Hold, logger)
	t.InterruptOnCtrlC = true
	if cfg.Retry > 0 {
		t.Retry = cfg.Retry
	}
	return t, nil
}
