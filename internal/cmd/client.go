package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sharkwire/kbbridge/apiclient"
)

// ClientConfig selects the running bridge the client commands talk to.
type ClientConfig struct {
	Addr    string        `help:"Address of the bridge API" default:"127.0.0.1:3243" env:"KBBRIDGE_API_ADDR"`
	Timeout time.Duration `help:"Request timeout" default:"5s"`
}

func (c ClientConfig) client() *apiclient.Client {
	return apiclient.NewWithConfig(c.Addr, &apiclient.Config{
		DialTimeout:  c.Timeout,
		ReadTimeout:  c.Timeout,
		WriteTimeout: c.Timeout,
	})
}

func writeJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// Status prints the status of a running bridge.
type Status struct {
	Client ClientConfig `embed:"" prefix:"api."`

	out io.Writer
}

func (s *Status) Run() error {
	resp, err := s.Client.client().Status()
	if err != nil {
		return err
	}
	return writeJSON(s.out, resp)
}

// LinkCommand groups keyboard link subcommands.
type LinkCommand struct {
	Reset   LinkReset   `cmd:"" help:"Drop the connected keyboard and release every key"`
	Battery LinkBattery `cmd:"" help:"Record the connected keyboard's battery level"`
}

type LinkReset struct {
	Client ClientConfig `embed:"" prefix:"api."`

	out io.Writer
}

func (l *LinkReset) Run() error {
	resp, err := l.Client.client().LinkReset()
	if err != nil {
		return err
	}
	return writeJSON(l.out, resp)
}

type LinkBattery struct {
	Client ClientConfig `embed:"" prefix:"api."`
	Level  int          `arg:"" help:"Battery level in percent (-1 for unknown)"`

	out io.Writer
}

func (l *LinkBattery) Run() error {
	if l.Level < -1 || l.Level > 100 {
		return fmt.Errorf("battery level must be between -1 and 100, got %d", l.Level)
	}
	resp, err := l.Client.client().LinkBattery(l.Level)
	if err != nil {
		return err
	}
	return writeJSON(l.out, resp)
}
