package models

import "time"

// Rect is a normalized layout rectangle (0..1 on both axes).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullFrame covers the whole composition.
var FullFrame = Rect{X: 0, Y: 0, Width: 1, Height: 1}

// Layout holds the placement of each camera output at composition time.
type Layout struct {
	Primary   Rect `json:"primary"`
	Secondary Rect `json:"secondary"`
}

// DefaultLayout returns a full-frame primary with a picture-in-picture secondary.
func DefaultLayout() Layout {
	return Layout{
		Primary:   FullFrame,
		Secondary: Rect{X: 0.62, Y: 0.04, Width: 0.34, Height: 0.34},
	}
}

// Video is one output file of a recording.
type Video struct {
	Path      string `json:"path"`
	Placement Rect   `json:"placement"`
}

// Recording is one finished take. Videos[0] is always the primary camera output,
// Videos[1] (dual mode only) the secondary camera output.
type Recording struct {
	ID        string    `json:"id"`
	Videos    []Video   `json:"videos"`
	Duration  Time      `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// IsDual reports whether the recording carries a secondary camera output.
func (r Recording) IsDual() bool {
	return len(r.Videos) == 2
}

// Paths returns the backing file of every video in output order.
func (r Recording) Paths() []string {
	paths := make([]string, 0, len(r.Videos))
	for _, v := range r.Videos {
		paths = append(paths, v.Path)
	}
	return paths
}

// CameraState is the state of the camera orchestrator
type CameraState string

const (
	StatePreparing    CameraState = "preparing"
	StateReady        CameraState = "ready"
	StateCountingDown CameraState = "counting_down"
	StateRecording    CameraState = "recording"
	StateError        CameraState = "error"
)

// CameraStatus is used for CLI/API status responses
type CameraStatus struct {
	State              CameraState `json:"state"`
	ErrorKind          string      `json:"error_kind,omitempty"`
	Error              string      `json:"error,omitempty"`
	CountdownRemaining int         `json:"countdown_remaining,omitempty"`
	Requested          Topology    `json:"requested_topology"`
	Effective          Topology    `json:"effective_topology"`
	ZoomFactor         float64     `json:"zoom_factor"`
	Clips              []Recording `json:"clips"`
	TotalSeconds       float64     `json:"total_seconds"`
	RemainingSeconds   float64     `json:"remaining_seconds"`
	Unlimited          bool        `json:"unlimited,omitempty"`
	HasReachedMax      bool        `json:"has_reached_max"`
	Streaming          bool        `json:"streaming"`
}
