//go:build !linux

package hidraw

import (
	"errors"
)

// OpenDevice is only implemented on Linux.
func OpenDevice(path string) (*Device, error) {
	return nil, errors.New("hidraw devices are only supported on linux")
}
