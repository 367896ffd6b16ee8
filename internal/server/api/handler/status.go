package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/sharkwire/kbbridge/bridge"
	"github.com/sharkwire/kbbridge/internal/server/api"
	"github.com/sharkwire/kbbridge/internal/status"
	"github.com/sharkwire/kbbridge/link"
)

// Status returns a handler reporting link, bus and key counters.
func Status(b *bridge.Bridge, s *link.Session) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		out, err := json.Marshal(status.Collect(b, s))
		if err != nil {
			return err
		}
		res.JSON = string(out)
		return nil
	}
}
