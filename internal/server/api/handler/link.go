package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sharkwire/kbbridge/apitypes"
	"github.com/sharkwire/kbbridge/internal/server/api"
	"github.com/sharkwire/kbbridge/link"
)

// LinkReset returns a handler that drops the current keyboard session so the
// bridge releases every key on its next tick.
func LinkReset(s *link.Session) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		id, was := s.ForceClose()
		out := apitypes.LinkResetResponse{WasActive: was}
		if was {
			out.Session = id.String()
		}
		logger.Info("link reset requested", "wasActive", was)
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}

// LinkBattery returns a handler that records the battery level reported for
// the current keyboard.
func LinkBattery(s *link.Session) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		payload := strings.TrimSpace(req.Payload)
		if payload == "" {
			return api.ErrBadRequest("missing battery level")
		}
		var r apitypes.LinkBatteryRequest
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			// Also accept an unquoted "57%".
			if err2 := json.Unmarshal([]byte(fmt.Sprintf("%q", payload)), &r); err2 != nil {
				return api.ErrBadRequest(fmt.Sprintf("invalid battery level: %v", err))
			}
		}
		st := s.Status()
		if !st.Connected {
			return api.ErrNotFound("no keyboard connected")
		}
		id, err := link.ParseID(st.ID)
		if err != nil {
			return api.ErrInternal(err.Error())
		}
		if err := s.Battery(id, r.Level); err != nil {
			if errors.Is(err, link.ErrStaleSession) {
				return api.ErrConflict("keyboard session changed")
			}
			return err
		}
		b, err := json.Marshal(apitypes.LinkBatteryResponse{Session: st.ID, Battery: s.Status().Battery})
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}
