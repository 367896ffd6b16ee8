package api

import "time"

// ServerConfig represents the API section of the run command configuration.
type ServerConfig struct {
	Addr              string        `help:"API server listen address (empty disables the API)" default:"127.0.0.1:3243" env:"KBBRIDGE_API_ADDR"`
	ConnectionTimeout time.Duration `help:"Time allowed to send a request line" default:"30s" env:"KBBRIDGE_API_CONNECTION_TIMEOUT"`
}
