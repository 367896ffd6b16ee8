package terminal_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharkwire/kbbridge/link"
	"github.com/sharkwire/kbbridge/source/terminal"
	"github.com/sharkwire/kbbridge/usage"
)

// recorder is a link sink that keeps every report.
type recorder struct {
	mu      sync.Mutex
	reports [][]byte
	resets  int
}

func (r *recorder) OnInputReport(report []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, append([]byte(nil), report...))
	return nil
}

func (r *recorder) Reset() {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
}

func (r *recorder) pressed() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint8
	for _, rep := range r.reports {
		if rep[2] != 0 {
			out = append(out, rep[2])
		}
	}
	return out
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunTypesInput(t *testing.T) {
	rec := &recorder{}
	session := link.New(rec, quiet(), nil)
	src := terminal.New("test", func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("hi\x1b[3~")), nil
	}, 0, quiet())

	require.NoError(t, src.Run(context.Background(), session))

	assert.Equal(t, []uint8{usage.KeyH, usage.KeyI, usage.KeyDelete}, rec.pressed())
	assert.Len(t, rec.reports, 6, "every press has a release")
	assert.Equal(t, 1, rec.resets, "closing the session releases all keys")
	assert.False(t, session.Status().Connected)
}

func TestRunTrailingEscapeOnEOF(t *testing.T) {
	rec := &recorder{}
	session := link.New(rec, quiet(), nil)
	src := terminal.New("test", func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("\x1b")), nil
	}, 0, quiet())

	require.NoError(t, src.Run(context.Background(), session))
	assert.Equal(t, []uint8{usage.KeyEscape}, rec.pressed())
}

func TestRunCtrlC(t *testing.T) {
	rec := &recorder{}
	session := link.New(rec, quiet(), nil)
	src := terminal.New("test", func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("a\x03b")), nil
	}, 0, quiet())
	src.InterruptOnCtrlC = true

	err := src.Run(context.Background(), session)
	assert.ErrorIs(t, err, terminal.ErrInterrupted)
	assert.Equal(t, []uint8{usage.KeyA}, rec.pressed())
}

func TestRunOpenError(t *testing.T) {
	session := link.New(&recorder{}, quiet(), nil)
	src := terminal.New("test", func() (io.ReadCloser, error) {
		return nil, errors.New("no such port")
	}, 0, quiet())
	err := src.Run(context.Background(), session)
	assert.ErrorContains(t, err, "no such port")
	assert.False(t, session.Status().Connected)
}

func TestRunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	rec := &recorder{}
	session := link.New(rec, quiet(), nil)
	src := terminal.New("test", func() (io.ReadCloser, error) { return pr, nil }, time.Millisecond, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, session) }()

	_, err := pw.Write([]byte("z"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.pressed()) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunReopensAfterLinkReset(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	rec := &recorder{}
	session := link.New(rec, quiet(), nil)
	src := terminal.New("test", func() (io.ReadCloser, error) { return pr, nil }, 0, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, session) }()

	require.Eventually(t, func() bool { return session.Status().Connected }, time.Second, time.Millisecond)
	session.ForceClose()

	_, err := pw.Write([]byte("x"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.pressed()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, session.Status().Connected)

	require.NoError(t, pw.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on EOF")
	}
}

func TestRunWaitsWhileLinkBusy(t *testing.T) {
	rec := &recorder{}
	session := link.New(rec, quiet(), nil)
	apiID, err := session.Open("api")
	require.NoError(t, err)

	src := terminal.New("test", func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("q")), nil
	}, 0, quiet())
	src.Retry = 5 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- src.Run(context.Background(), session) }()

	time.Sleep(20 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Run returned while the link was busy: %v", err)
	default:
	}
	assert.Empty(t, rec.pressed())

	require.NoError(t, session.Close(apiID))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not take over the link")
	}
	assert.Equal(t, []uint8{usage.KeyQ}, rec.pressed())
}

func TestRunBusyLinkStopsOnCancel(t *testing.T) {
	session := link.New(&recorder{}, quiet(), nil)
	_, err := session.Open("api")
	require.NoError(t, err)

	src := terminal.New("test", func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("q")), nil
	}, 0, quiet())
	src.Retry = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, src.Run(ctx, session))
	assert.Equal(t, "api", session.Status().Manufacturer)
}
