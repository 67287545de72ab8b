package camera

import (
	"context"
	"time"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Session is the capture session the orchestrator drives. *capture.Session implements it.
type Session interface {
	HasCamera() bool
	SetTopology(t models.Topology) <-chan error
	EffectiveTopology() (models.Topology, bool)
	Stream(ctx context.Context, flash bool) (<-chan models.StreamEvent, error)
	SetFlash(on bool)
	UpdateZoom(factor float64)
	FinishZoom(factor float64)
	StartRecording(budget time.Duration)
	StopRecording()
	IsRecording() bool
	ZoomFactor() float64
	Layout() models.Layout
}

// Media is a capture medium that needs access permission.
type Media string

const (
	MediaCamera     Media = "camera"
	MediaMicrophone Media = "microphone"
)

// Permissions asks the host for access to a medium.
type Permissions interface {
	RequestAccess(ctx context.Context, m Media) bool
}

// StaticPermissions answers from fixed values.
type StaticPermissions struct {
	Camera     bool
	Microphone bool
}

func (p StaticPermissions) RequestAccess(_ context.Context, m Media) bool {
	switch m {
	case MediaCamera:
		return p.Camera
	case MediaMicrophone:
		return p.Microphone
	default:
		return false
	}
}

// Renderer composites live frames. Samples are only valid during the call.
type Renderer interface {
	RenderPrimary(s models.Sample)
	RenderSecondary(s models.Sample)
	// PurgeBuffers drops held frames so stale content is not shown after a flip or mode change.
	PurgeBuffers()
	// SetCameraLayout places the outputs; secondary is nil in single mode.
	SetCameraLayout(primary models.Rect, secondary *models.Rect)
}
