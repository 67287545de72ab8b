//go:build windows

package lifecycle

import (
	"os"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
)

// no user signals on windows; use the control API instead
var watched []os.Signal

func Translate(os.Signal) (camera.Signal, bool) {
	return camera.Signal{}, false
}
