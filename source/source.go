// Package source defines keyboard input sources and the registry the run
// command selects them from. Each source owns the link session while it
// feeds reports into the bridge.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sharkwire/kbbridge/link"
)

// ErrUnknownSource is returned when no source is registered under a name.
var ErrUnknownSource = errors.New("unknown input source")

// Config represents the source section of the run command configuration.
type Config struct {
	Kind       string        `help:"Input source: hidraw, terminal, serial or stream" default:"hidraw" env:"KBBRIDGE_SOURCE"`
	Device     string        `help:"hidraw device node" default:"/dev/hidraw0" env:"KBBRIDGE_SOURCE_DEVICE"`
	SerialPort string        `help:"Serial port for the serial terminal source" default:"/dev/ttyUSB0" env:"KBBRIDGE_SOURCE_SERIAL_PORT"`
	Baud       int           `help:"Serial baud rate" default:"115200" env:"KBBRIDGE_SOURCE_BAUD"`
	Hold       time.Duration `help:"How long terminal keystrokes are held before release, at least one bridge tick" default:"40ms" env:"KBBRIDGE_SOURCE_HOLD"`
	Retry      time.Duration `help:"Poll interval while the device is absent or the link is busy" default:"1s" env:"KBBRIDGE_SOURCE_RETRY"`
}

// Source feeds keyboard reports into a link session.
type Source interface {
	// Run blocks until ctx is done or the source fails permanently.
	Run(ctx context.Context, session *link.Session) error
}

// Factory creates a source from configuration.
type Factory func(cfg Config, logger *slog.Logger) (Source, error)

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// Register registers a source factory. Names are case-insensitive.
// Sources call it from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = f
}

// Lookup returns the factory for name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownSource, name, strings.Join(kindsLocked(), ", "))
	}
	return f, nil
}

// Kinds lists registered source names in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return kindsLocked()
}

func kindsLocked() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New creates the source selected by cfg.Kind.
func New(cfg Config, logger *slog.Logger) (Source, error) {
	f, err := Lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return f(cfg, logger.With("source", strings.ToLower(cfg.Kind)))
}
