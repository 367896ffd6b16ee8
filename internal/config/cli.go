// Package config holds the root command line of kbbridge.
package config

import (
	"github.com/sharkwire/kbbridge/internal/cmd"
	"github.com/sharkwire/kbbridge/internal/log"
)

// CLI is the kong root. Values come from flags, KBBRIDGE_* environment
// variables and the JSON/YAML/TOML config files, in that order of precedence.
type CLI struct {
	Config string     `help:"Path to a config file (json, yaml or toml)" type:"path" env:"KBBRIDGE_CONFIG"`
	Log    log.Config `embed:"" prefix:"log."`

	Run       cmd.Run           `cmd:"" default:"withargs" help:"Run the keyboard bridge"`
	Status    cmd.Status        `cmd:"" help:"Show the status of a running bridge"`
	Type      cmd.Type          `cmd:"" help:"Type text through a running bridge"`
	Link      cmd.LinkCommand   `cmd:"" help:"Manage the keyboard link of a running bridge"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
}
