package apitypes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 404, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// LinkStatus describes the keyboard link.
type LinkStatus struct {
	Session      string `json:"session,omitempty"`
	Connected    bool   `json:"connected"`
	Manufacturer string `json:"manufacturer"`
	// Battery is a percentage, or -1 when unknown.
	Battery  int    `json:"battery"`
	Since    string `json:"since,omitempty"`
	Reports  uint64 `json:"reports"`
	Rejected uint64 `json:"rejected"`
}

// BusStatus describes the transmit side.
type BusStatus struct {
	State         string `json:"state"`
	QueueDepth    int    `json:"queueDepth"`
	QueueCapacity int    `json:"queueCapacity"`
	Sent          uint64 `json:"sent"`
	Spurious      uint64 `json:"spurious"`
}

// KeyStatus describes the scheduler.
type KeyStatus struct {
	Ticks    uint64   `json:"ticks"`
	Held     []string `json:"held"`
	Shift    bool     `json:"shift"`
	Presses  uint64   `json:"presses"`
	Repeats  uint64   `json:"repeats"`
	Releases uint64   `json:"releases"`
	Dropped  uint64   `json:"dropped"`
}

type StatusResponse struct {
	Link LinkStatus `json:"link"`
	Bus  BusStatus  `json:"bus"`
	Keys KeyStatus  `json:"keys"`
}

type LinkResetResponse struct {
	Session   string `json:"session,omitempty"`
	WasActive bool   `json:"wasActive"`
}

type LinkBatteryResponse struct {
	Session string `json:"session"`
	Battery int    `json:"battery"`
}

// LinkBatteryRequest carries a battery level in percent.
type LinkBatteryRequest struct {
	Level int `json:"level"`
}

// UnmarshalJSON accepts {"level":57}, a bare number, or a string such as
// "57" or "57%".
func (r *LinkBatteryRequest) UnmarshalJSON(data []byte) error {
	var obj struct {
		Level any `json:"level"`
	}
	var v any
	if err := json.Unmarshal(data, &obj); err == nil && obj.Level != nil {
		v = obj.Level
	} else if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	level, err := parsePercent(v)
	if err != nil {
		return fmt.Errorf("level: %w", err)
	}
	r.Level = level
	return nil
}

func parsePercent(v any) (int, error) {
	switch val := v.(type) {
	case float64:
		if val < -1 || val > 100 {
			return 0, fmt.Errorf("value %v out of range", val)
		}
		return int(val), nil
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(val), "%")
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid percentage %q: %w", val, err)
		}
		return parsePercent(float64(n))
	default:
		return 0, fmt.Errorf("expected number or string, got %T", v)
	}
}

// KeyboardStreamResponse is the first line the server writes on a keyboard
// stream once the link session is open.
type KeyboardStreamResponse struct {
	Session string `json:"session"`
}
