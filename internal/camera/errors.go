package camera

import (
	"errors"

	"github.com/kartoza/kartoza-dualcam/internal/capture"
)

var (
	// ErrHardwareAbsent means no camera was discovered.
	ErrHardwareAbsent = errors.New("no camera available")
	// ErrPermissionsMissing means camera or microphone access was not granted.
	ErrPermissionsMissing = errors.New("camera or microphone access not granted")
	// ErrDeviceContention means another client holds the camera or the system is under pressure.
	ErrDeviceContention = errors.New("camera unavailable: in use or under system pressure")
	// ErrCancelled is the default reason reported by Cancel.
	ErrCancelled = errors.New("camera session cancelled")
	// ErrRecordingInProgress is returned for changes that are not allowed while recording.
	ErrRecordingInProgress = errors.New("not allowed while recording")
)

// ErrorKind is the closed set of failures the orchestrator can be in.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindHardwareAbsent     ErrorKind = "hardware_absent"
	KindPermissionsMissing ErrorKind = "permissions_missing"
	KindDeviceContention   ErrorKind = "device_contention"
	KindUnknown            ErrorKind = "unknown"
)

// Recoverable reports whether Retry can be expected to succeed without host action.
func (k ErrorKind) Recoverable() bool {
	return k == KindDeviceContention || k == KindUnknown
}

// Classify maps an error from the capture session or a hardware signal onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrHardwareAbsent), errors.Is(err, capture.ErrNoCamera):
		return KindHardwareAbsent
	case errors.Is(err, ErrPermissionsMissing):
		return KindPermissionsMissing
	case errors.Is(err, ErrDeviceContention),
		errors.Is(err, capture.ErrDeviceBusy),
		errors.Is(err, capture.ErrSystemPressure):
		return KindDeviceContention
	default:
		return KindUnknown
	}
}
