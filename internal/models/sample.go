package models

// SampleKind distinguishes video frames from audio buffers.
type SampleKind int

const (
	KindVideo SampleKind = iota
	KindAudio
)

// Output identifies a capture output of the session.
type Output int

const (
	// OutputPrimary is video output #1.
	OutputPrimary Output = iota
	// OutputSecondary is video output #2, used only in dual mode.
	OutputSecondary
	// OutputAudio is the microphone output.
	OutputAudio
)

func (o Output) String() string {
	switch o {
	case OutputPrimary:
		return "primary"
	case OutputSecondary:
		return "secondary"
	case OutputAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Sample is one timestamped media buffer delivered by capture hardware.
//
// Data is owned by the producer and is only valid for the duration of the
// callback that delivers it. Consumers must copy anything they keep.
type Sample struct {
	Output      Output
	Kind        SampleKind
	PTS         Time
	Data        []byte
	Width       int
	Height      int
	PixelFormat string
	SampleRate  int
	Channels    int
}

// StreamEvent is emitted by a capture session stream. It is one of
// PrimaryFrame, SecondaryFrame, FinishedRecording or RecordingDropped.
type StreamEvent interface {
	streamEvent()
}

// PrimaryFrame carries a live frame from the primary camera.
type PrimaryFrame struct {
	Sample Sample
}

// SecondaryFrame carries a live frame from the secondary camera.
type SecondaryFrame struct {
	Sample Sample
}

// FinishedRecording is emitted once per recording after every output has been finalized.
type FinishedRecording struct {
	Recording Recording
}

// RecordingDropped is emitted instead of FinishedRecording when the primary
// output could not be finalized.
type RecordingDropped struct {
	ID string
}

func (PrimaryFrame) streamEvent()      {}
func (SecondaryFrame) streamEvent()    {}
func (FinishedRecording) streamEvent() {}
func (RecordingDropped) streamEvent()  {}
