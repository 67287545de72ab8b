//go:build !windows

package lifecycle

import (
	"os"
	"syscall"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
)

var watched = []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2}

// Translate maps SIGUSR1 to Background and SIGUSR2 to Foreground.
func Translate(s os.Signal) (camera.Signal, bool) {
	switch s {
	case syscall.SIGUSR1:
		return camera.Background(), true
	case syscall.SIGUSR2:
		return camera.Foreground(), true
	default:
		return camera.Signal{}, false
	}
}
