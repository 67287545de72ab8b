package capture

import (
	"errors"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Hardware errors. Implementations wrap these so callers can classify failures.
var (
	// ErrNoCamera means no camera device was discovered.
	ErrNoCamera = errors.New("no camera device found")
	// ErrDeviceBusy means another process holds the camera or microphone.
	ErrDeviceBusy = errors.New("capture device is in use by another client")
	// ErrSystemPressure means the device was shut down because of thermal or resource pressure.
	ErrSystemPressure = errors.New("capture device shut down due to system pressure")
	// ErrUnknownDevice is returned for an ID the hardware does not know.
	ErrUnknownDevice = errors.New("unknown capture device")
)

// DeviceKind distinguishes cameras from microphones.
type DeviceKind string

const (
	DeviceCamera     DeviceKind = "camera"
	DeviceMicrophone DeviceKind = "microphone"
)

// Position is where a camera points.
type Position string

const (
	PositionBack  Position = "back"
	PositionFront Position = "front"
)

// Device describes a discovered capture device.
type Device struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Kind     DeviceKind `json:"kind"`
	Position Position   `json:"position,omitempty"`
	HasTorch bool       `json:"has_torch,omitempty"`
	MinZoom  float64    `json:"min_zoom,omitempty"`
	MaxZoom  float64    `json:"max_zoom,omitempty"`
}

// ClampZoom limits factor to the device's zoom range.
func (d Device) ClampZoom(factor float64) float64 {
	lo, hi := d.MinZoom, d.MaxZoom
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	switch {
	case factor < lo:
		return lo
	case factor > hi:
		return hi
	default:
		return factor
	}
}

// ConnectionOptions configures a device-to-output connection.
type ConnectionOptions struct {
	Mirrored bool `json:"mirrored"`
	Rotation int  `json:"rotation"`
}

// Connection is one routed device-to-output link.
type Connection struct {
	DeviceID string            `json:"device_id"`
	Output   models.Output     `json:"output"`
	Options  ConnectionOptions `json:"options"`
}

// SampleHandler receives every sample produced while the hardware runs.
// The sample's Data is only valid until the handler returns.
type SampleHandler func(models.Sample)

// Hardware is the physical capture pipeline a Session drives.
//
// Implementations need not be safe for concurrent use: the Session calls
// every method from its own serial executor.
type Hardware interface {
	// Devices lists cameras and microphones.
	Devices() []Device
	// MultiCamSupported reports whether two cameras can stream at once.
	MultiCamSupported() bool

	// BeginConfiguration and CommitConfiguration bracket an atomic reconfiguration.
	BeginConfiguration()
	CommitConfiguration() error

	// AddInput claims a device; RemoveInput releases it and its connections.
	AddInput(deviceID string) error
	RemoveInput(deviceID string) error
	// Connect routes a held device to an output.
	Connect(deviceID string, out models.Output, opts ConnectionOptions) error
	// DisconnectVideo removes every video connection, keeping inputs held.
	DisconnectVideo()
	// Connections lists the current routing.
	Connections() []Connection

	// Start begins producing samples into handler.
	Start(handler SampleHandler) error
	// Stop halts sample production. The handler is not called after Stop returns.
	Stop() error
	IsRunning() bool

	SetTorch(deviceID string, on bool) error
	SetZoom(deviceID string, factor float64) error
}

// VideoConnections filters conns down to the video outputs.
func VideoConnections(conns []Connection) []Connection {
	var video []Connection
	for _, c := range conns {
		if c.Output == models.OutputPrimary || c.Output == models.OutputSecondary {
			video = append(video, c)
		}
	}
	return video
}
