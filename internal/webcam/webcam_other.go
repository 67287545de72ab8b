//go:build !linux

package webcam

import (
	"errors"
	"fmt"
	"runtime"
)

// Scan is only implemented for V4L2 hosts.
func Scan() ([]HostCamera, error) {
	return nil, fmt.Errorf("camera discovery on %s: %w", runtime.GOOS, errors.ErrUnsupported)
}
