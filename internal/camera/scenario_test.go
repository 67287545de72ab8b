package camera

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/kartoza-dualcam/internal/capture"
	"github.com/kartoza/kartoza-dualcam/internal/capture/testpattern"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

func step(t *testing.T, hw *testpattern.Hardware, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		require.True(t, hw.Step())
	}
}

// A 10s budget filled by a 6s manual take and a 4s take that stops itself.
func TestScenario_BudgetAcrossTwoTakes(t *testing.T) {
	hw := testpattern.New(testpattern.Options{Manual: true, Width: 8, Height: 8, FPS: 30})
	sess := newScenarioSession(t, hw)

	o, done := newTestOrchestrator(t, sess, func(o *Options) {
		o.Budget = 10 * time.Second
		o.AllowExceeding = false
	})
	ctx := context.Background()
	require.NoError(t, o.StartStreaming(ctx))
	require.Equal(t, models.StateReady, o.State())

	// first take: 6s of samples, then a manual stop
	o.StartRecording()
	require.Eventually(t, sess.IsRecording, time.Second, time.Millisecond)
	step(t, hw, 6*30+1)
	o.StopRecording()
	require.Eventually(t, func() bool { return len(o.Clips()) == 1 }, 5*time.Second, 5*time.Millisecond)

	snap := o.Snapshot()
	assert.Equal(t, 6*time.Second, snap.Clips[0].Duration.Duration())
	assert.InDelta(t, 4.0, snap.RemainingSeconds, 1e-9)
	assert.False(t, snap.HasReachedMax)

	// second take runs past the remaining budget and stops itself at 4s
	o.StartRecording()
	require.Eventually(t, sess.IsRecording, time.Second, time.Millisecond)
	step(t, hw, 5*30)
	require.Eventually(t, func() bool { return len(o.Clips()) == 2 }, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return o.State() == models.StateReady }, time.Second, time.Millisecond)

	snap = o.Snapshot()
	assert.Equal(t, 4*time.Second, snap.Clips[1].Duration.Duration())
	assert.True(t, snap.HasReachedMax)
	assert.InDelta(t, 0.0, snap.RemainingSeconds, 1e-9)
	assert.False(t, sess.IsRecording())

	// nothing left to record
	o.StartRecording()
	assert.Equal(t, models.StateReady, o.State())
	assert.False(t, sess.IsRecording())

	res, err := o.Done(ctx)
	require.NoError(t, err)
	require.Len(t, res.Recordings, 2)
	for _, rec := range res.Recordings {
		require.Len(t, rec.Videos, 1)
		assert.FileExists(t, rec.Videos[0].Path)
	}
	_, _ = o.Done(ctx)
	assert.Equal(t, 1, done.count())
}

func newScenarioSession(t *testing.T, hw *testpattern.Hardware) *capture.Session {
	t.Helper()
	sess := capture.NewSession(capture.Config{
		Hardware:   hw,
		ScratchDir: t.TempDir(),
		QueueSize:  4096,
		Logger:     zerolog.Nop(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sess.Close(ctx)
	})
	return sess
}

// Stopping and immediately restarting must not hand the second take the
// budget the first one already used.
func TestScenario_StopThenRestartKeepsBudget(t *testing.T) {
	hw := testpattern.New(testpattern.Options{Manual: true, Width: 8, Height: 8, FPS: 30})
	sess := newScenarioSession(t, hw)

	o, _ := newTestOrchestrator(t, sess, func(o *Options) {
		o.Budget = 10 * time.Second
		o.AllowExceeding = false
	})
	require.NoError(t, o.StartStreaming(context.Background()))

	o.StartRecording()
	require.Eventually(t, sess.IsRecording, time.Second, time.Millisecond)
	step(t, hw, 6*30+1)
	o.StopRecording()
	o.StartRecording()

	require.Eventually(t, func() bool { return len(o.Clips()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.False(t, sess.IsRecording())

	o.StartRecording()
	require.Eventually(t, sess.IsRecording, time.Second, time.Millisecond)
	step(t, hw, 12*30)
	require.Eventually(t, func() bool { return len(o.Clips()) == 2 }, 5*time.Second, 5*time.Millisecond)

	snap := o.Snapshot()
	assert.Equal(t, 6*time.Second, snap.Clips[0].Duration.Duration())
	assert.Equal(t, 4*time.Second, snap.Clips[1].Duration.Duration())
	assert.InDelta(t, 10.0, snap.TotalSeconds, 1e-9)
	assert.True(t, snap.HasReachedMax)
}

// A camera taken by another process during a flip puts the session in error;
// Retry brings it back once the camera is free.
func TestScenario_RetryAfterBusyCamera(t *testing.T) {
	hw := testpattern.New(testpattern.Options{Manual: true, Width: 8, Height: 8, FPS: 30})
	sess := newScenarioSession(t, hw)

	o, _ := newTestOrchestrator(t, sess, nil)
	ctx := context.Background()
	require.NoError(t, o.StartStreaming(ctx))

	hw.SetBusy("cam-front", true)
	o.FlipCamera()
	require.Eventually(t, func() bool { return o.State() == models.StateError }, time.Second, time.Millisecond)
	kind, _ := o.Error()
	assert.Equal(t, KindDeviceContention, kind)
	require.Eventually(t, func() bool { return !sess.IsRunning() }, time.Second, time.Millisecond)

	hw.SetBusy("cam-front", false)
	require.NoError(t, o.Retry(ctx))
	assert.Equal(t, models.StateReady, o.State())
	assert.True(t, sess.IsRunning())

	eff, ok := sess.EffectiveTopology()
	require.True(t, ok)
	assert.Equal(t, models.FacingFront, eff.Facing)
	var video []string
	for _, c := range hw.Connections() {
		if c.Output == models.OutputPrimary {
			video = append(video, c.DeviceID)
		}
	}
	assert.Equal(t, []string{"cam-front"}, video)
}
