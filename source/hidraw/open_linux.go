package hidraw

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenDevice opens a hidraw node and asks the kernel for its name. The file
// stays in non-blocking mode so closing it interrupts a pending Read.
func OpenDevice(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	rc, err := f.SyscallConn()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	var (
		name  string
		ioErr error
	)
	err = rc.Control(func(fd uintptr) {
		name, ioErr = unix.IoctlHIDGetRawName(int(fd))
		if ioErr != nil || name != "" {
			return
		}
		if info, err := unix.IoctlHIDGetRawInfo(int(fd)); err == nil {
			name = fmt.Sprintf("%04x:%04x", uint16(info.Vendor), uint16(info.Product))
		}
	})
	if err == nil {
		err = ioErr
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s is not a hidraw device: %w", path, err)
	}
	return &Device{ReadCloser: f, Name: name}, nil
}
