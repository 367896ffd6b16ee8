package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sharkwire/kbbridge/apitypes"
)

// Client provides a high-level interface to the bridge control API, handling
// request formatting, response parsing and error handling.
type Client struct{ transport *Transport }

// New constructs a high-level API client for the server at addr (host:port).
func New(addr string) *Client { return &Client{transport: NewTransport(addr)} }

// NewWithConfig constructs a client with custom transport timeouts.
func NewWithConfig(addr string, cfg *Config) *Client {
	return &Client{transport: NewTransportWithConfig(addr, cfg)}
}

// WithTransport constructs a Client using a custom Transport, mostly for tests.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Ping returns the version and identity of the bridge.
func (c *Client) Ping() (*apitypes.PingResponse, error) {
	return c.PingCtx(context.Background())
}

func (c *Client) PingCtx(ctx context.Context) (*apitypes.PingResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "ping", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.PingResponse](raw)
}

// Status returns the link, bus and key counters.
func (c *Client) Status() (*apitypes.StatusResponse, error) {
	return c.StatusCtx(context.Background())
}

func (c *Client) StatusCtx(ctx context.Context) (*apitypes.StatusResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "status", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.StatusResponse](raw)
}

// LinkReset drops the current keyboard session; the bridge releases every
// key on its next tick.
func (c *Client) LinkReset() (*apitypes.LinkResetResponse, error) {
	return c.LinkResetCtx(context.Background())
}

func (c *Client) LinkResetCtx(ctx context.Context) (*apitypes.LinkResetResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "link/reset", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.LinkResetResponse](raw)
}

// LinkBattery records the connected keyboard's battery level in percent.
func (c *Client) LinkBattery(level int) (*apitypes.LinkBatteryResponse, error) {
	return c.LinkBatteryCtx(context.Background(), level)
}

func (c *Client) LinkBatteryCtx(ctx context.Context, level int) (*apitypes.LinkBatteryResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "link/battery", apitypes.LinkBatteryRequest{Level: level}, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.LinkBatteryResponse](raw)
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
