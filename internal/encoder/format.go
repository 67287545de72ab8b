package encoder

import (
	"fmt"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Format is the container format an encoder writes.
type Format string

const (
	// FormatRaw writes the framed sample log (.kvr). It needs no external tools.
	FormatRaw Format = "raw"
	// FormatMKV pipes samples through ffmpeg into a Matroska file.
	FormatMKV Format = "mkv"
)

// ParseFormat parses a container format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatRaw, FormatMKV:
		return Format(s), nil
	case "":
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("unsupported container format %q", s)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMKV:
		return ".mkv"
	default:
		return ".kvr"
	}
}

// NeedsFFmpeg reports whether writing this format shells out to ffmpeg.
func (f Format) NeedsFFmpeg() bool {
	return f == FormatMKV
}

// sampleWriter receives samples for one destination file.
type sampleWriter interface {
	// Ready reports whether the writer can take another sample of this kind now.
	Ready(kind models.SampleKind) bool
	WriteVideo(s models.Sample) error
	WriteAudio(s models.Sample) error
	// Close flushes buffered data and closes the destination.
	Close() error
}

type openFunc func(path string, first models.Sample, cfg Config) (sampleWriter, error)

func openerFor(f Format) openFunc {
	switch f {
	case FormatMKV:
		return openFFmpegWriter
	default:
		return openRawWriter
	}
}
