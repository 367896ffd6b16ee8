// Package testing holds helpers shared by the API and handler tests.
package testing

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharkwire/kbbridge/bridge"
	"github.com/sharkwire/kbbridge/internal/server/api"
	"github.com/sharkwire/kbbridge/kbbus"
	"github.com/sharkwire/kbbridge/link"
)

// Quiet returns a logger that discards everything.
func Quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// StartAPIServer starts an API server on a free port and calls register to
// allow the caller to register the handlers needed for the test. Returns the
// address and a function to call when done.
func StartAPIServer(t *testing.T, register func(r *api.Router, apiSrv *api.Server)) (addr string, done func()) {
	t.Helper()
	apiSrv := api.New("127.0.0.1:0", api.ServerConfig{}, Quiet())
	if register != nil {
		register(apiSrv.Router(), apiSrv)
	}
	require.NoError(t, apiSrv.Start(), "api start failed")
	return apiSrv.Addr(), apiSrv.Close
}

// ExecCmd dials the API server, sends cmd and reads the response line.
// The command should not include a trailing newline or terminator.
func ExecCmd(t *testing.T, addr string, cmd string) string {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err, "dial failed")
	defer c.Close()

	_, err = fmt.Fprintf(c, "%s\x00", cmd)
	require.NoError(t, err)

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil && err != io.EOF {
		t.Fatalf("read failed: %v", err)
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
}

// Fixture is a bridge wired to a simulated console and a link session.
type Fixture struct {
	Bridge  *bridge.Bridge
	Console *kbbus.Console
	Session *link.Session
}

// NewFixture builds a bridge with default settings.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	console := kbbus.NewConsole()
	b, err := bridge.New(bridge.DefaultConfig(), console, Quiet())
	require.NoError(t, err)
	return &Fixture{
		Bridge:  b,
		Console: console,
		Session: link.New(b.Tracker(), Quiet(), nil),
	}
}

// TickAndDrain runs one scheduler tick and clocks out everything queued.
func (f *Fixture) TickAndDrain(t *testing.T) []byte {
	t.Helper()
	f.Bridge.Tick()
	out, err := f.Console.Drain(f.Bridge.Transmitter())
	require.NoError(t, err)
	return out
}
