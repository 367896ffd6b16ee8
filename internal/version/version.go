// Package version reports the build version, set at link time with
// -ldflags "-X github.com/sharkwire/kbbridge/internal/version.Version=v1.2.3".
package version

import (
	"strings"
)

const devVersion = "0.0.1-dev"

var Version = ""

// Get returns the version without a leading "v". Unset or malformed values
// report the development version.
func Get() string {
	if Version == "" {
		return devVersion
	}
	v := strings.TrimPrefix(Version, "v")
	base := strings.SplitN(v, "-", 2)[0]
	if !strings.Contains(base, ".") {
		return devVersion
	}
	return v
}
