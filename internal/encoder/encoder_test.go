package encoder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

func videoAt(frame int64) models.Sample {
	return models.Sample{
		Output:      models.OutputPrimary,
		Kind:        models.KindVideo,
		PTS:         models.NewTime(frame, 30),
		Data:        []byte{1, 2, 3, 4},
		Width:       2,
		Height:      2,
		PixelFormat: "gray",
	}
}

func audioAt(frame int64) models.Sample {
	return models.Sample{
		Output: models.OutputAudio,
		Kind:   models.KindAudio,
		PTS:    models.NewTime(frame, 30),
		Data:   []byte{0, 0, 1, 1},
	}
}

func newTestEncoder() *Encoder {
	return New(DefaultConfig(), zerolog.New(io.Discard))
}

func TestEncoder_StopWithoutStart(t *testing.T) {
	enc := newTestEncoder()

	_, err := enc.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotWriting)
}

func TestEncoder_StartTwice(t *testing.T) {
	enc := newTestEncoder()
	path := filepath.Join(t.TempDir(), "a.kvr")

	require.NoError(t, enc.Start(path, FormatRaw))
	assert.ErrorIs(t, enc.Start(path, FormatRaw), ErrAlreadyStarted)
}

func TestEncoder_NoIOBeforeFirstVideoSample(t *testing.T) {
	enc := newTestEncoder()
	path := filepath.Join(t.TempDir(), "a.kvr")
	require.NoError(t, enc.Start(path, FormatRaw))

	enc.AppendAudio(audioAt(0))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expected no file before the first video sample")

	_, err = enc.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotWriting)
}

func TestEncoder_RecordsDurationFromVideoTimestamps(t *testing.T) {
	enc := newTestEncoder()
	path := filepath.Join(t.TempDir(), "a.kvr")
	require.NoError(t, enc.Start(path, FormatRaw))

	// zero point is frame 100, not 0
	for f := int64(100); f <= 160; f++ {
		enc.AppendVideo(videoAt(f))
		enc.AppendAudio(audioAt(f))
	}

	assert.Equal(t, 2.0, enc.RecordedDuration().Seconds())

	out, err := enc.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, out.Path)
	assert.Equal(t, 2.0, out.Duration.Seconds())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := ReadRaw(f)
	require.NoError(t, err)
	assert.Len(t, records, 122)
	assert.Equal(t, models.KindVideo, records[0].Kind)
	assert.Equal(t, int64(100), records[0].PTS.Value)
	assert.Equal(t, 2, records[0].Width)
}

func TestEncoder_AppendAfterStopIsNoOp(t *testing.T) {
	enc := newTestEncoder()
	path := filepath.Join(t.TempDir(), "a.kvr")
	require.NoError(t, enc.Start(path, FormatRaw))
	enc.AppendVideo(videoAt(0))
	enc.AppendVideo(videoAt(30))

	_, err := enc.Stop(context.Background())
	require.NoError(t, err)

	enc.AppendVideo(videoAt(90))
	assert.Equal(t, 1.0, enc.RecordedDuration().Seconds())
	assert.False(t, enc.IsWriting())

	_, err = enc.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotWriting)
}

func TestEncoder_OpenFailure(t *testing.T) {
	enc := newTestEncoder()
	path := filepath.Join(t.TempDir(), "missing-dir", "a.kvr")
	require.NoError(t, enc.Start(path, FormatRaw))

	enc.AppendVideo(videoAt(0))

	_, err := enc.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotWriting)
}

func TestEncoder_RejectsOversizedFrame(t *testing.T) {
	enc := newTestEncoder()
	path := filepath.Join(t.TempDir(), "a.kvr")
	require.NoError(t, enc.Start(path, FormatRaw))

	enc.AppendVideo(videoAt(0))
	huge := videoAt(1)
	huge.Width = 70000
	enc.AppendVideo(huge)
	enc.AppendVideo(videoAt(2))

	_, err := enc.Stop(context.Background())
	require.ErrorIs(t, err, ErrFrameSize)
	assert.Contains(t, err.Error(), "70000x2")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := ReadRaw(f)
	require.NoError(t, err)
	require.Len(t, records, 1, "nothing is written after the rejected frame")
	assert.Equal(t, 2, records[0].Width)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatRaw, false},
		{"raw", FormatRaw, false},
		{"mkv", FormatMKV, false},
		{"avi", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFFmpegArgs(t *testing.T) {
	cfg := DefaultConfig()
	args := ffmpegArgs("/tmp/out.mkv", models.Sample{Width: 640, Height: 360}, cfg)

	assert.Contains(t, args, "640x360")
	assert.Contains(t, args, "gray")
	assert.Contains(t, args, "pipe:3")
	assert.Equal(t, "/tmp/out.mkv", args[len(args)-1])
}
