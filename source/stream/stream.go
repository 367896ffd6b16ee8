// Package stream accepts keyboard reports over the TCP control API. A client
// opens the "keyboard" stream route, receives one JSON line naming its link
// session, then sends length-prefixed input reports until it disconnects.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"

	"github.com/sharkwire/kbbridge/apitypes"
	"github.com/sharkwire/kbbridge/internal/server/api"
	"github.com/sharkwire/kbbridge/keystate"
	"github.com/sharkwire/kbbridge/link"
	"github.com/sharkwire/kbbridge/source"
)

// Route is the API stream path. An optional "/{name}" suffix names the
// keyboard in the link status.
const Route = "keyboard"

// MaxReportLen bounds a single framed report.
const MaxReportLen = 64

var ErrFrameTooLong = fmt.Errorf("stream: report longer than %d bytes", MaxReportLen)

func init() {
	source.Register("stream", func(cfg source.Config, logger *slog.Logger) (source.Source, error) {
		return apiOnly{logger: logger}, nil
	})
}

// apiOnly is the source used when keyboards only arrive over the API.
type apiOnly struct{ logger *slog.Logger }

func (s apiOnly) Run(ctx context.Context, _ *link.Session) error {
	s.logger.Info("waiting for keyboard streams on the API", "route", Route)
	<-ctx.Done()
	return nil
}

// Report is one input report as framed on the wire: a length byte followed
// by the report bytes.
type Report []byte

// MarshalBinary encodes the frame.
func (r Report) MarshalBinary() ([]byte, error) {
	if len(r) > MaxReportLen {
		return nil, ErrFrameTooLong
	}
	out := make([]byte, 0, len(r)+1)
	out = append(out, byte(len(r)))
	return append(out, r...), nil
}

// ReadReport reads one frame. A zero-length frame is returned as an empty
// report.
func ReadReport(r *bufio.Reader) (Report, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if int(n) > MaxReportLen {
		return nil, ErrFrameTooLong
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// Handler returns the stream handler feeding reports into session. Routes
// "keyboard" and "keyboard/{name}" both use it.
func Handler(session *link.Session) api.StreamHandlerFunc {
	return func(conn net.Conn, params map[string]string, logger *slog.Logger) error {
		name, err := url.PathUnescape(params["name"])
		if err != nil || name == "" {
			name = "api " + conn.RemoteAddr().String()
		}
		id, err := session.Open(name)
		if err != nil {
			writeLine(conn, api.ErrConflict(err.Error()))
			return nil
		}
		defer func() { _ = session.Close(id) }()

		writeLine(conn, apitypes.KeyboardStreamResponse{Session: id.String()})

		r := bufio.NewReader(conn)
		for {
			rep, err := ReadReport(r)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("read report: %w", err)
			}
			err = session.Input(id, rep)
			switch {
			case err == nil:
			case errors.Is(err, keystate.ErrShortReport):
				logger.Debug("ignoring report", "len", len(rep), "error", err)
			default:
				// The link was reset or taken over; this stream is done.
				return err
			}
		}
	}
}

func writeLine(w io.Writer, v any) {
	b, _ := json.Marshal(v)
	_, _ = w.Write(append(b, '\n'))
}
