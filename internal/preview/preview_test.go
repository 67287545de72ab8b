package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

func grayFrame(w, h int, v byte) models.Sample {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = v
	}
	return models.Sample{
		Output:      models.OutputPrimary,
		Kind:        models.KindVideo,
		Data:        data,
		Width:       w,
		Height:      h,
		PixelFormat: "gray",
	}
}

func TestRenderer_CopiesFrames(t *testing.T) {
	r := New()
	s := grayFrame(4, 4, 255)
	r.RenderPrimary(s)

	// the producer reuses its buffer
	for i := range s.Data {
		s.Data[i] = 0
	}

	img := r.Composite(4, 4)
	assert.Equal(t, uint8(255), img.GrayAt(1, 1).Y)
	assert.Equal(t, uint64(1), r.Frames())
}

func TestRenderer_IgnoresUnknownFormats(t *testing.T) {
	r := New()
	s := grayFrame(4, 4, 255)
	s.PixelFormat = "nv12"
	r.RenderPrimary(s)
	assert.False(t, r.HasFrame())

	short := grayFrame(4, 4, 255)
	short.Data = short.Data[:3]
	r.RenderPrimary(short)
	assert.False(t, r.HasFrame())
}

func TestRenderer_PurgeBuffers(t *testing.T) {
	r := New()
	r.RenderPrimary(grayFrame(4, 4, 255))
	require.True(t, r.HasFrame())

	r.PurgeBuffers()
	assert.False(t, r.HasFrame())
	assert.Equal(t, strings.Repeat(" ", 4), r.ASCII(4, 1))
}

func TestRenderer_DualLayout(t *testing.T) {
	r := New()
	layout := models.DefaultLayout()
	r.SetCameraLayout(layout.Primary, &layout.Secondary)
	r.RenderPrimary(grayFrame(8, 8, 0))
	r.RenderSecondary(grayFrame(8, 8, 255))

	img := r.Composite(100, 100)
	// inside the picture-in-picture rectangle
	assert.Equal(t, uint8(255), img.GrayAt(75, 15).Y)
	// outside it
	assert.Equal(t, uint8(0), img.GrayAt(10, 80).Y)

	// back to single: the secondary is no longer drawn
	r.SetCameraLayout(models.FullFrame, nil)
	img = r.Composite(100, 100)
	assert.Equal(t, uint8(0), img.GrayAt(75, 15).Y)
}

func TestRenderer_ASCII(t *testing.T) {
	r := New()
	r.RenderPrimary(grayFrame(4, 4, 255))

	out := r.ASCII(6, 3)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, strings.Repeat("@", 6), l)
	}
}
