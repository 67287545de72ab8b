package models

import "fmt"

// Facing selects which physical camera feeds the primary output.
type Facing string

const (
	// FacingBack means the primary output is the back camera.
	FacingBack Facing = "back"
	// FacingFront means the primary output is the user-facing camera.
	FacingFront Facing = "front"
)

// Flipped returns the opposite facing.
func (f Facing) Flipped() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// ParseFacing parses "back" or "front".
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case FacingBack, FacingFront:
		return Facing(s), nil
	default:
		return "", fmt.Errorf("invalid facing %q (want back or front)", s)
	}
}

// Mode selects single or dual camera capture.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeDual   Mode = "dual"
)

// ParseMode parses "single" or "dual".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModeDual:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid camera mode %q (want single or dual)", s)
	}
}

// Topology is the camera routing configuration of a capture session.
type Topology struct {
	Facing Facing `json:"facing"`
	Mode   Mode   `json:"mode"`
	Flash  bool   `json:"flash"`
}

// DefaultTopology returns a single back-camera topology with flash off.
func DefaultTopology() Topology {
	return Topology{Facing: FacingBack, Mode: ModeSingle}
}

// SameRouting reports whether two topologies route devices identically.
// Flash does not affect routing.
func (t Topology) SameRouting(o Topology) bool {
	return t.Facing == o.Facing && t.Mode == o.Mode
}
