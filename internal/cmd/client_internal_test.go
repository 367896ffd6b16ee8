package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharkwire/kbbridge/apitypes"
	"github.com/sharkwire/kbbridge/internal/server/api"
	"github.com/sharkwire/kbbridge/internal/server/api/handler"
	htesting "github.com/sharkwire/kbbridge/internal/testing"
)

func startBridgeAPI(t *testing.T) (*htesting.Fixture, ClientConfig) {
	t.Helper()
	f := htesting.NewFixture(t)
	addr, done := htesting.StartAPIServer(t, func(r *api.Router, _ *api.Server) {
		r.Register("status", handler.Status(f.Bridge, f.Session))
		r.Register("link/reset", handler.LinkReset(f.Session))
		r.Register("link/battery", handler.LinkBattery(f.Session))
	})
	t.Cleanup(done)
	return f, ClientConfig{Addr: addr, Timeout: time.Second}
}

func TestStatusCommand(t *testing.T) {
	f, cc := startBridgeAPI(t)
	_, err := f.Session.Open("Acme")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, (&Status{Client: cc, out: &out}).Run())

	var got apitypes.StatusResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Link.Connected)
	assert.Equal(t, "Acme", got.Link.Manufacturer)
}

func TestLinkCommands(t *testing.T) {
	f, cc := startBridgeAPI(t)
	_, err := f.Session.Open("")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, (&LinkBattery{Client: cc, Level: 64, out: &out}).Run())
	assert.Contains(t, out.String(), `"battery": 64`)
	assert.Equal(t, 64, f.Session.Status().Battery)

	assert.Error(t, (&LinkBattery{Client: cc, Level: 101, out: &out}).Run())

	out.Reset()
	require.NoError(t, (&LinkReset{Client: cc, out: &out}).Run())
	assert.Contains(t, out.String(), `"wasActive": true`)
	assert.False(t, f.Session.Status().Connected)

	err = (&LinkBattery{Client: cc, Level: 10, out: &out}).Run()
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestConfigKey(t *testing.T) {
	tests := map[string]string{
		"Tick":          "tick",
		"RepeatDelay":   "repeat_delay",
		"QueueCapacity": "queue_capacity",
		"HTTPAddr":      "http_addr",
		"Addr":          "addr",
		"RawFile":       "raw_file",
	}
	for in, want := range tests {
		assert.Equal(t, want, configKey(in), in)
	}
}
