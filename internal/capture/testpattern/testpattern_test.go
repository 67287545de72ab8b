package testpattern

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kartoza/kartoza-dualcam/internal/capture"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func route(t *testing.T, h *Hardware, cams ...string) {
	t.Helper()
	for i, id := range cams {
		require.NoError(t, h.AddInput(id))
		require.NoError(t, h.Connect(id, models.Output(i), capture.ConnectionOptions{}))
	}
	require.NoError(t, h.AddInput("mic"))
	require.NoError(t, h.Connect("mic", models.OutputAudio, capture.ConnectionOptions{}))
}

func TestStep_ProducesOneSamplePerConnection(t *testing.T) {
	h := New(Options{Manual: true, MultiCam: true, Logger: zerolog.Nop()})
	route(t, h, "cam-back", "cam-front")

	var got []models.Sample
	require.NoError(t, h.Start(func(s models.Sample) {
		s.Data = append([]byte(nil), s.Data...)
		got = append(got, s)
	}))

	require.True(t, h.Step())
	require.True(t, h.Step())
	require.NoError(t, h.Stop())
	assert.False(t, h.Step())

	require.Len(t, got, 6)
	counts := map[models.Output]int{}
	for _, s := range got {
		counts[s.Output]++
	}
	assert.Equal(t, 2, counts[models.OutputPrimary])
	assert.Equal(t, 2, counts[models.OutputSecondary])
	assert.Equal(t, 2, counts[models.OutputAudio])

	last := got[len(got)-1]
	assert.Equal(t, models.NewTime(1, 30), last.PTS)
	assert.Equal(t, 160*90, len(got[0].Data))
}

func TestAddInput_WithoutMultiCamHoldsOneCamera(t *testing.T) {
	h := New(Options{Manual: true})
	require.NoError(t, h.AddInput("cam-back"))
	assert.Error(t, h.AddInput("cam-front"))

	require.NoError(t, h.RemoveInput("cam-back"))
	assert.NoError(t, h.AddInput("cam-front"))
}

func TestAddInput_Busy(t *testing.T) {
	h := New(Options{Manual: true})
	h.SetBusy("cam-back", true)
	assert.ErrorIs(t, h.AddInput("cam-back"), capture.ErrDeviceBusy)
	assert.ErrorIs(t, h.AddInput("nope"), capture.ErrUnknownDevice)
}

func TestTorchAndZoom(t *testing.T) {
	h := New(Options{Manual: true})
	require.NoError(t, h.SetTorch("cam-back", true))
	assert.True(t, h.Torch("cam-back"))
	assert.Error(t, h.SetTorch("cam-front", true))

	require.NoError(t, h.SetZoom("cam-front", 2))
	assert.Equal(t, 2.0, h.Zoom("cam-front"))
	assert.Equal(t, 1.0, h.Zoom("cam-back"))
}

func TestPaced_StopsDelivering(t *testing.T) {
	h := New(Options{FPS: 200, Width: 8, Height: 8})
	route(t, h, "cam-back")

	var (
		mu    sync.Mutex
		count int
	)
	require.NoError(t, h.Start(func(models.Sample) {
		mu.Lock()
		count++
		mu.Unlock()
	}))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 4
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.Stop())

	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, count, "no samples after Stop returns")
}
