package bridge_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharkwire/kbbridge/bridge"
	"github.com/sharkwire/kbbridge/kbbus"
	"github.com/sharkwire/kbbridge/scancode"
	"github.com/sharkwire/kbbridge/usage"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newBridge(t *testing.T, mutate func(*bridge.Config)) (*bridge.Bridge, *kbbus.Console) {
	t.Helper()
	cfg := bridge.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	console := kbbus.NewConsole()
	b, err := bridge.New(cfg, console, quietLogger())
	require.NoError(t, err)
	return b, console
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*bridge.Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*bridge.Config) {}},
		{name: "repeat disabled", mutate: func(c *bridge.Config) { c.RepeatDelay = 0 }},
		{name: "current release mode", mutate: func(c *bridge.Config) { c.ReleaseMode = "current" }},
		{name: "zero tick", mutate: func(c *bridge.Config) { c.Tick = 0 }, wantErr: true},
		{name: "zero interval", mutate: func(c *bridge.Config) { c.RepeatInterval = 0 }, wantErr: true},
		{name: "zero capacity", mutate: func(c *bridge.Config) { c.QueueCapacity = 0 }, wantErr: true},
		{name: "bad release mode", mutate: func(c *bridge.Config) { c.ReleaseMode = "later" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := bridge.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, bridge.ErrInvalidConfig), "got %v", err)
				_, newErr := bridge.New(cfg, kbbus.NewConsole(), nil)
				assert.ErrorIs(t, newErr, bridge.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHeldKeyOverTheBus(t *testing.T) {
	b, console := newBridge(t, nil)

	b.Tracker().Update(0, []uint8{usage.KeyA})
	var got []byte
	for i := 0; i < 35; i++ {
		b.Tick()
		out, err := console.Drain(b.Transmitter())
		require.NoError(t, err)
		got = append(got, out...)
	}
	assert.Equal(t, []byte{0x1C, 0x1C, 0x1C}, got)

	b.Tracker().Update(0, nil)
	b.Tick()
	out, err := console.Drain(b.Transmitter())
	require.NoError(t, err)
	assert.Equal(t, []byte{scancode.Break, 0x1C}, out)
	assert.Equal(t, kbbus.Idle, b.Transmitter().State())
}

func TestDeleteOverTheBus(t *testing.T) {
	b, console := newBridge(t, nil)

	require.NoError(t, b.Tracker().OnInputReport([]byte{0, 0, usage.KeyDelete, 0, 0, 0, 0, 0}))
	b.Tick()
	out, err := console.Drain(b.Transmitter())
	require.NoError(t, err)
	assert.Equal(t, []byte{scancode.Extended, scancode.Delete}, out)

	require.NoError(t, b.Tracker().OnInputReport([]byte{0, 0, 0, 0, 0, 0, 0, 0}))
	b.Tick()
	out, err = console.Drain(b.Transmitter())
	require.NoError(t, err)
	assert.Equal(t, []byte{scancode.Break, scancode.Extended, scancode.Delete}, out)
}

func TestQueueOverflowDropsAndCounts(t *testing.T) {
	b, console := newBridge(t, func(c *bridge.Config) { c.QueueCapacity = 2 })

	b.Tracker().Update(usage.ModLeftShift, []uint8{usage.KeyDelete})
	b.Tick()

	st := b.Status()
	assert.Equal(t, 2, st.QueueDepth)
	assert.Equal(t, uint64(1), st.Keys.Dropped)

	out, err := console.Drain(b.Transmitter())
	require.NoError(t, err)
	assert.Equal(t, []byte{scancode.ShiftMake, scancode.Extended}, out)
}

func TestStatus(t *testing.T) {
	b, console := newBridge(t, nil)
	b.Tracker().Update(usage.ModRightShift, []uint8{usage.KeyB, usage.KeyC})
	b.Tick()
	_, err := console.Drain(b.Transmitter())
	require.NoError(t, err)
	b.Transmitter().Advance()

	st := b.Status()
	assert.Equal(t, uint64(1), st.Ticks)
	assert.Equal(t, []uint8{usage.KeyB, usage.KeyC}, st.Held)
	assert.True(t, st.Shift)
	assert.Equal(t, uint64(3), st.Sent)
	assert.Equal(t, uint64(1), st.Spurious)
	assert.Equal(t, uint64(2), st.Keys.Presses)
	assert.Equal(t, 0, st.QueueDepth)
	assert.Equal(t, 64, st.QueueCapacity)
	assert.Equal(t, kbbus.Idle, st.TxState)
}

func TestRunWithSimulatedConsole(t *testing.T) {
	b, console := newBridge(t, func(c *bridge.Config) { c.Tick = time.Millisecond })

	var (
		mu  sync.Mutex
		got []byte
	)
	console.OnByte = func(c byte) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go console.Run(ctx, b.Transmitter(), 50*time.Microsecond)
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.Tracker().Update(0, []uint8{usage.KeyDelete})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	}, 2*time.Second, time.Millisecond)
	b.Tracker().Reset()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		n := len(got)
		return n >= 3 && got[n-1] == scancode.Delete && got[n-3] == scancode.Break
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMetrics(t *testing.T) {
	b, console := newBridge(t, nil)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, b.RegisterMetrics(reg))

	b.Tracker().Update(0, []uint8{usage.KeyA})
	b.Tick()
	_, err := console.Drain(b.Transmitter())
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["kbbridge_ticks_total"])
	assert.Equal(t, 1.0, values["kbbridge_scancodes_sent_total"])
	assert.Equal(t, 0.0, values["kbbridge_scancodes_dropped_total"])
	assert.Equal(t, 1.0, values["kbbridge_key_presses_total"])
	assert.Equal(t, 1.0, values["kbbridge_keys_held"])
	assert.Equal(t, 0.0, values["kbbridge_queue_depth"])

	assert.Error(t, b.RegisterMetrics(reg), "double registration must fail")
}
