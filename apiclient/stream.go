package apiclient

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sharkwire/kbbridge/apitypes"
	"github.com/sharkwire/kbbridge/source/stream"
	"github.com/sharkwire/kbbridge/usage"
	"github.com/sharkwire/kbbridge/usage/vt"
)

// KeyboardStream is an open keyboard link over the API. While it is open the
// bridge treats it as the connected keyboard.
type KeyboardStream struct {
	conn    net.Conn
	Session string

	mu     sync.Mutex
	closed bool
}

// OpenKeyboard opens the keyboard stream route. name, if set, is reported as
// the keyboard's manufacturer. The call fails with an *apitypes.ApiError when
// another keyboard already owns the link.
func (c *Client) OpenKeyboard(ctx context.Context, name string) (*KeyboardStream, error) {
	if c.transport.mock != nil {
		return nil, errMockStream
	}
	path := stream.Route
	if name != "" {
		path = fillPath(stream.Route+"/{name}", map[string]string{"name": name})
	}
	conn, err := c.transport.dial(ctx, []byte(path))
	if err != nil {
		return nil, err
	}

	if c.transport.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.transport.cfg.ReadTimeout))
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		conn.Close()
		return nil, fmt.Errorf("read hello: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	hello, err := parse[apitypes.KeyboardStreamResponse](strings.TrimSuffix(line, "\n"))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &KeyboardStream{conn: conn, Session: hello.Session}, nil
}

// SendReport writes one boot-protocol input report.
func (s *KeyboardStream) SendReport(report []byte) error {
	data, err := stream.Report(report).MarshalBinary()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream closed")
	}
	_, err = s.conn.Write(data)
	return err
}

// Type sends text as press and release reports, holding each key for hold.
// Characters without a key mapping are skipped.
func (s *KeyboardStream) Type(ctx context.Context, text string, hold time.Duration) error {
	for i := 0; i < len(text); i++ {
		stroke, ok := usage.FromASCII(text[i])
		if !ok {
			continue
		}
		if err := s.SendReport(vt.PressReport(stroke)); err != nil {
			return err
		}
		if err := sleep(ctx, hold); err != nil {
			return err
		}
		if err := s.SendReport(vt.ReleaseReport()); err != nil {
			return err
		}
		if err := sleep(ctx, hold); err != nil {
			return err
		}
	}
	return nil
}

// Close ends the stream. The bridge releases any keys still held.
func (s *KeyboardStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
