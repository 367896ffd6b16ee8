// Package link tracks the wireless keyboard connection: who is connected,
// the battery level and manufacturer they reported, and the reports they
// delivered. Closing a session releases every key on the bus.
package link

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sharkwire/kbbridge/internal/log"
)

const (
	// BatteryUnknown is reported until the keyboard sends a level.
	BatteryUnknown = -1
	// DefaultManufacturer is used when the keyboard does not report one.
	DefaultManufacturer = "Unknown"
	// MaxManufacturerLen bounds the stored manufacturer string in bytes.
	MaxManufacturerLen = 63
)

var (
	ErrNotConnected = errors.New("link: no keyboard connected")
	ErrBusy         = errors.New("link: another keyboard is connected")
	ErrStaleSession = errors.New("link: session is no longer current")
)

// Sink receives reports for the connected keyboard. keystate.Tracker
// implements it.
type Sink interface {
	OnInputReport(report []byte) error
	Reset()
}

// Status is a snapshot of the link.
type Status struct {
	ID           string
	Connected    bool
	Manufacturer string
	Battery      int
	Since        time.Time
	Reports      uint64
	Rejected     uint64
}

// Session is the single keyboard link of a bridge. Only one keyboard may be
// connected at a time; sources hold the ID returned by Open.
type Session struct {
	sink   Sink
	logger *slog.Logger
	raw    log.RawLogger

	mu           sync.Mutex
	id           xid.ID
	connected    bool
	manufacturer string
	battery      int
	since        time.Time
	reports      uint64
	rejected     uint64
}

// New returns a disconnected session feeding sink.
func New(sink Sink, logger *slog.Logger, raw log.RawLogger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Session{
		sink:         sink,
		logger:       logger,
		raw:          raw,
		manufacturer: DefaultManufacturer,
		battery:      BatteryUnknown,
	}
}

// Open marks a keyboard as connected and returns the session ID the caller
// must pass to Close and Input.
func (s *Session) Open(manufacturer string) (xid.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return xid.NilID(), fmt.Errorf("%w (session %s, %s)", ErrBusy, s.id, s.manufacturer)
	}
	s.id = xid.New()
	s.connected = true
	s.manufacturer = normalizeManufacturer(manufacturer)
	s.battery = BatteryUnknown
	s.since = time.Now()
	s.reports, s.rejected = 0, 0
	s.logger.Info("keyboard connected", "session", s.id, "manufacturer", s.manufacturer)
	return s.id, nil
}

// Close disconnects session id and releases all keys. Closing a session that
// is not current is a no-op returning ErrStaleSession.
func (s *Session) Close(id xid.ID) error {
	s.mu.Lock()
	if !s.connected || s.id != id {
		s.mu.Unlock()
		return ErrStaleSession
	}
	s.connected = false
	reports := s.reports
	// Reset under the lock so no report still in Input can refill the sink.
	s.sink.Reset()
	s.mu.Unlock()

	s.logger.Info("keyboard disconnected", "session", id, "reports", reports)
	return nil
}

// ForceClose disconnects whatever session is current, if any, and releases
// all keys.
func (s *Session) ForceClose() (xid.ID, bool) {
	s.mu.Lock()
	id, was := s.id, s.connected
	s.connected = false
	s.sink.Reset()
	s.mu.Unlock()

	if was {
		s.logger.Info("keyboard link reset", "session", id)
	}
	return id, was
}

// Battery records a battery level in percent. Out of range values are
// clamped; negative values mean unknown.
func (s *Session) Battery(id xid.ID, level int) error {
	switch {
	case level < 0:
		level = BatteryUnknown
	case level > 100:
		level = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.id != id {
		return ErrStaleSession
	}
	if s.battery != level {
		s.logger.Debug("battery level", "session", id, "level", level)
	}
	s.battery = level
	return nil
}

// Input forwards one keyboard input report to the sink. The report is
// delivered while the session lock is held, so a concurrent Close or
// ForceClose always resets the sink after it.
func (s *Session) Input(id xid.ID, report []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	if s.id != id {
		return ErrStaleSession
	}

	s.raw.Log(log.DirHID, report)
	if err := s.sink.OnInputReport(report); err != nil {
		s.rejected++
		return err
	}
	s.reports++
	return nil
}

// Status returns a snapshot of the link.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Connected:    s.connected,
		Manufacturer: s.manufacturer,
		Battery:      s.battery,
		Reports:      s.reports,
		Rejected:     s.rejected,
	}
	if s.connected {
		st.ID = s.id.String()
		st.Since = s.since
	}
	return st
}

func normalizeManufacturer(m string) string {
	if m == "" {
		return DefaultManufacturer
	}
	if len(m) > MaxManufacturerLen {
		n := MaxManufacturerLen
		for n > 0 && !utf8.RuneStart(m[n]) {
			n--
		}
		m = m[:n]
	}
	return m
}

// ParseID parses a session ID as shown in Status.
func ParseID(s string) (xid.ID, error) {
	id, err := xid.FromString(s)
	if err != nil {
		return xid.NilID(), fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return id, nil
}
