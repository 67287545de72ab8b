// Package encoder turns timestamped camera and microphone samples into a
// finalized media file. One Encoder exists per physical output per recording.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// ErrNotWriting is returned by Stop when the encoder never wrote a sample or
// was already stopped.
var ErrNotWriting = errors.New("encoder is not writing")

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("encoder already started")

// Config holds encoder settings that do not change per recording.
type Config struct {
	FrameRate       int
	AudioSampleRate int
	AudioChannels   int
	FFmpegPath      string
}

// DefaultConfig returns settings matching the synthetic capture hardware.
func DefaultConfig() Config {
	return Config{
		FrameRate:       30,
		AudioSampleRate: 48000,
		AudioChannels:   1,
		FFmpegPath:      "ffmpeg",
	}
}

// Output is the finalized result of an encoder.
type Output struct {
	Path     string
	Duration models.Time
}

type state int

const (
	stateIdle state = iota
	stateArmed
	stateWriting
	stateFailed
	stateStopping
	stateStopped
)

// Encoder writes the samples of one capture output to a file.
type Encoder struct {
	cfg    Config
	logger zerolog.Logger

	mu       sync.Mutex
	state    state
	path     string
	open     openFunc
	w        sampleWriter
	start    models.Time
	recorded models.Time
	videos   int
	audios   int
	writeErr error
}

// New creates an inactive encoder.
func New(cfg Config, logger zerolog.Logger) *Encoder {
	return &Encoder{cfg: cfg, logger: logger, recorded: models.Zero}
}

// Start arms the encoder for path. No file is created until the first video
// sample arrives; that sample's timestamp becomes the zero point.
func (e *Encoder) Start(path string, format Format) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateIdle {
		return ErrAlreadyStarted
	}
	e.path = path
	e.open = openerFor(format)
	e.state = stateArmed
	return nil
}

// AppendVideo writes a video frame. It is a no-op unless the encoder is accepting samples.
func (e *Encoder) AppendVideo(s models.Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateArmed:
		w, err := e.open(e.path, s, e.cfg)
		if err != nil {
			e.fail(err)
			return
		}
		e.w = w
		e.start = s.PTS
		e.state = stateWriting
	case stateWriting:
	default:
		return
	}

	if !e.w.Ready(models.KindVideo) {
		return
	}
	if err := e.w.WriteVideo(s); err != nil {
		e.fail(err)
		return
	}
	e.videos++
	e.recorded = s.PTS.Sub(e.start)
}

// AppendAudio writes an audio buffer. Audio arriving before the first video
// frame is dropped.
func (e *Encoder) AppendAudio(s models.Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateWriting || !e.w.Ready(models.KindAudio) {
		return
	}
	if err := e.w.WriteAudio(s); err != nil {
		e.fail(err)
		return
	}
	e.audios++
}

// RecordedDuration is the last video timestamp minus the zero point.
func (e *Encoder) RecordedDuration() models.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorded
}

// IsWriting reports whether the encoder is accepting samples.
func (e *Encoder) IsWriting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateArmed || e.state == stateWriting
}

// Stop stops accepting samples, flushes and closes the destination and
// returns the file with its recorded duration.
func (e *Encoder) Stop(ctx context.Context) (Output, error) {
	e.mu.Lock()
	switch e.state {
	case stateWriting, stateFailed:
	case stateArmed:
		// nothing was ever written, so there is no file to hand back
		e.state = stateStopped
		e.mu.Unlock()
		return Output{}, ErrNotWriting
	default:
		e.mu.Unlock()
		return Output{}, ErrNotWriting
	}
	e.state = stateStopping
	w := e.w
	out := Output{Path: e.path, Duration: e.recorded}
	writeErr := e.writeErr
	videos, audios := e.videos, e.audios
	e.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- w.Close() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	e.mu.Lock()
	e.state = stateStopped
	e.mu.Unlock()

	if err = errors.Join(writeErr, err); err != nil {
		return out, fmt.Errorf("failed to finalize %s: %w", out.Path, err)
	}

	e.logger.Debug().
		Str("path", out.Path).
		Float64("duration_s", out.Duration.Seconds()).
		Int("video_samples", videos).
		Int("audio_samples", audios).
		Msg("encoder finalized")
	return out, nil
}

// fail records a write error and stops accepting samples. Called with mu held.
func (e *Encoder) fail(err error) {
	if e.writeErr == nil {
		e.writeErr = err
		e.logger.Error().Err(err).Str("path", e.path).Msg("encoder write failed")
	}
	if e.w == nil {
		// never opened: nothing to finalize
		e.state = stateStopped
		return
	}
	// Stop still closes the writer and reports the error
	e.state = stateFailed
}
