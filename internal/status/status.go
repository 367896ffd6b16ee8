// Package status assembles the status document served by the TCP API, the
// HTTP endpoint and the periodic status log.
package status

import (
	"time"

	"github.com/sharkwire/kbbridge/apitypes"
	"github.com/sharkwire/kbbridge/bridge"
	"github.com/sharkwire/kbbridge/link"
	"github.com/sharkwire/kbbridge/usage"
)

// Collect snapshots b and s.
func Collect(b *bridge.Bridge, s *link.Session) apitypes.StatusResponse {
	bs := b.Status()
	ls := s.Status()

	held := make([]string, 0, len(bs.Held))
	for _, k := range bs.Held {
		held = append(held, usage.Name(k))
	}
	var since string
	if !ls.Since.IsZero() {
		since = ls.Since.UTC().Format(time.RFC3339)
	}

	return apitypes.StatusResponse{
		Link: apitypes.LinkStatus{
			Session:      ls.ID,
			Connected:    ls.Connected,
			Manufacturer: ls.Manufacturer,
			Battery:      ls.Battery,
			Since:        since,
			Reports:      ls.Reports,
			Rejected:     ls.Rejected,
		},
		Bus: apitypes.BusStatus{
			State:         bs.TxState.String(),
			QueueDepth:    bs.QueueDepth,
			QueueCapacity: bs.QueueCapacity,
			Sent:          bs.Sent,
			Spurious:      bs.Spurious,
		},
		Keys: apitypes.KeyStatus{
			Ticks:    bs.Ticks,
			Held:     held,
			Shift:    bs.Shift,
			Presses:  bs.Keys.Presses,
			Repeats:  bs.Keys.Repeats,
			Releases: bs.Keys.Releases,
			Dropped:  bs.Keys.Dropped,
		},
	}
}
