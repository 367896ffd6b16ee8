package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/sharkwire/kbbridge/repeat"
	"github.com/sharkwire/kbbridge/txqueue"
)

// ErrInvalidConfig is returned by Validate and New for unusable settings.
var ErrInvalidConfig = errors.New("invalid bridge config")

// Config represents the bridge section of the run command configuration.
type Config struct {
	Tick           time.Duration `help:"Scheduler tick period" default:"20ms" env:"KBBRIDGE_TICK"`
	RepeatDelay    uint32        `help:"Ticks a key is held before it repeats (0 disables repeat)" default:"25" env:"KBBRIDGE_REPEAT_DELAY"`
	RepeatInterval uint32        `help:"Ticks between repeats" default:"5" env:"KBBRIDGE_REPEAT_INTERVAL"`
	QueueCapacity  int           `help:"Transmit queue capacity in bytes" default:"64" env:"KBBRIDGE_QUEUE_CAPACITY"`
	ReleaseMode    string        `help:"Scancode used for BREAK: press (as sent at press time) or current (re-resolved with current shift)" enum:"press,current" default:"press" env:"KBBRIDGE_RELEASE_MODE"`
}

// DefaultConfig mirrors the flag defaults.
func DefaultConfig() Config {
	return Config{
		Tick:           20 * time.Millisecond,
		RepeatDelay:    repeat.DefaultRepeatDelay,
		RepeatInterval: repeat.DefaultRepeatInterval,
		QueueCapacity:  txqueue.DefaultCapacity,
		ReleaseMode:    repeat.ReleaseAtPress.String(),
	}
}

// Validate checks the configuration and returns an error wrapping
// ErrInvalidConfig on the first problem found.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive, got %s", ErrInvalidConfig, c.Tick)
	}
	if c.RepeatInterval < 1 {
		return fmt.Errorf("%w: repeat interval must be at least 1 tick", ErrInvalidConfig)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity must be at least 1, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	if _, err := repeat.ParseReleaseMode(c.ReleaseMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) schedulerConfig() repeat.Config {
	mode, _ := repeat.ParseReleaseMode(c.ReleaseMode)
	return repeat.Config{
		RepeatDelay:    c.RepeatDelay,
		RepeatInterval: c.RepeatInterval,
		Release:        mode,
	}
}
