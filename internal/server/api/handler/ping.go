package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/sharkwire/kbbridge/apitypes"
	"github.com/sharkwire/kbbridge/internal/server/api"
	"github.com/sharkwire/kbbridge/internal/version"
)

// ServerName identifies the bridge in ping responses.
const ServerName = "kbbridge"

// Ping returns a handler reporting the server identity and version.
func Ping() api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		b, err := json.Marshal(apitypes.PingResponse{Server: ServerName, Version: version.Get()})
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}
