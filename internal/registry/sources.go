// Package registry links in every input source so the run command can select
// them by name.
package registry

import (
	_ "github.com/sharkwire/kbbridge/source/hidraw"   // Register hidraw source
	_ "github.com/sharkwire/kbbridge/source/stream"   // Register API stream source
	_ "github.com/sharkwire/kbbridge/source/terminal" // Register terminal and serial sources
)
