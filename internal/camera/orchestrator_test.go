package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
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

// fakeSession records what the orchestrator asks of the capture session and
// lets tests push stream events.
type fakeSession struct {
	mu         sync.Mutex
	hasCamera  bool
	topoErr    error
	topologies []models.Topology
	streams    int
	budgets    []time.Duration
	stops      int
	flash      []bool
	zooms      []float64
	events     chan models.StreamEvent
}

func newFakeSession() *fakeSession {
	return &fakeSession{hasCamera: true}
}

func (f *fakeSession) HasCamera() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasCamera
}

func (f *fakeSession) SetTopology(t models.Topology) <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topologies = append(f.topologies, t)
	result := make(chan error, 1)
	result <- f.topoErr
	return result
}

func (f *fakeSession) EffectiveTopology() (models.Topology, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.topologies) == 0 {
		return models.Topology{}, false
	}
	return f.topologies[len(f.topologies)-1], true
}

func (f *fakeSession) Stream(ctx context.Context, flash bool) (<-chan models.StreamEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams++
	ch := make(chan models.StreamEvent, 8)
	f.events = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if f.events == ch {
			f.events = nil
		}
		f.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeSession) push(ev models.StreamEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		return false
	}
	select {
	case f.events <- ev:
		return true
	default:
		return false
	}
}

func (f *fakeSession) SetFlash(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flash = append(f.flash, on)
}

func (f *fakeSession) UpdateZoom(factor float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zooms = append(f.zooms, factor)
}

func (f *fakeSession) FinishZoom(factor float64) { f.UpdateZoom(factor) }

func (f *fakeSession) StartRecording(budget time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.budgets = append(f.budgets, budget)
}

func (f *fakeSession) StopRecording() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSession) IsRecording() bool     { return false }
func (f *fakeSession) ZoomFactor() float64   { return 1 }
func (f *fakeSession) Layout() models.Layout { return models.DefaultLayout() }

func (f *fakeSession) streamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams
}

func (f *fakeSession) budgetCalls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.budgets...)
}

type fakeRenderer struct {
	mu        sync.Mutex
	primary   int
	secondary int
	purges    int
	dual      bool
}

func (r *fakeRenderer) RenderPrimary(models.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary++
}

func (r *fakeRenderer) RenderSecondary(models.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secondary++
}

func (r *fakeRenderer) PurgeBuffers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purges++
}

func (r *fakeRenderer) SetCameraLayout(_ models.Rect, secondary *models.Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dual = secondary != nil
}

type completions struct {
	mu      sync.Mutex
	results []Result
}

func (c *completions) record(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *completions) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func newTestOrchestrator(t *testing.T, fs Session, mutate func(*Options)) (*Orchestrator, *completions) {
	t.Helper()
	done := &completions{}
	opts := Options{
		Session:    fs,
		Budget:     10 * time.Second,
		Countdown:  -1,
		OnComplete: done.record,
		Logger:     zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	o := New(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = o.Done(ctx)
	})
	return o, done
}

func clipWithFile(t *testing.T, id string, seconds int64) models.Recording {
	t.Helper()
	p := filepath.Join(t.TempDir(), id+"-primary.kvr")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	return models.Recording{
		ID:       id,
		Duration: models.NewTime(seconds*30, 30),
		Videos:   []models.Video{{Path: p, Placement: models.FullFrame}},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrHardwareAbsent, KindHardwareAbsent},
		{fmt.Errorf("configure: %w", capture.ErrNoCamera), KindHardwareAbsent},
		{ErrPermissionsMissing, KindPermissionsMissing},
		{fmt.Errorf("front: %w", capture.ErrDeviceBusy), KindDeviceContention},
		{capture.ErrSystemPressure, KindDeviceContention},
		{errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestStartStreaming_HardwareAbsent(t *testing.T) {
	fs := newFakeSession()
	fs.hasCamera = false
	o, _ := newTestOrchestrator(t, fs, nil)

	err := o.StartStreaming(context.Background())
	assert.ErrorIs(t, err, ErrHardwareAbsent)
	assert.Equal(t, models.StateError, o.State())
	kind, _ := o.Error()
	assert.Equal(t, KindHardwareAbsent, kind)
	assert.Empty(t, fs.topologies)
	assert.Equal(t, 0, fs.streamCount())
}

func TestStartStreaming_PermissionsMissing(t *testing.T) {
	fs := newFakeSession()
	o, done := newTestOrchestrator(t, fs, func(o *Options) {
		o.Permissions = StaticPermissions{Camera: true, Microphone: false}
	})

	err := o.StartStreaming(context.Background())
	assert.ErrorIs(t, err, ErrPermissionsMissing)
	assert.Equal(t, string(KindPermissionsMissing), o.Snapshot().ErrorKind)
	assert.Equal(t, 0, fs.streamCount())

	res, err := o.Cancel(context.Background(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrPermissionsMissing)
	assert.Equal(t, 1, done.count())
}

func TestStartStreaming_Idempotent(t *testing.T) {
	fs := newFakeSession()
	r := &fakeRenderer{}
	renderers := 0
	o, _ := newTestOrchestrator(t, fs, func(o *Options) {
		o.NewRenderer = func() Renderer {
			renderers++
			return r
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.StartStreaming(context.Background())
		}()
	}
	wg.Wait()
	require.NoError(t, o.StartStreaming(context.Background()))

	assert.Equal(t, 1, fs.streamCount())
	assert.Equal(t, 1, renderers)
	assert.Equal(t, models.StateReady, o.State())
	assert.True(t, o.Snapshot().Streaming)
}

func TestDone_SettlesOnce(t *testing.T) {
	fs := newFakeSession()
	o, done := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	rec := clipWithFile(t, "a", 2)
	require.True(t, fs.push(models.FinishedRecording{Recording: rec}))
	require.Eventually(t, func() bool { return len(o.Clips()) == 1 }, time.Second, 5*time.Millisecond)

	first, err := o.Done(context.Background())
	require.NoError(t, err)
	second, err := o.Done(context.Background())
	require.NoError(t, err)
	_, err = o.Cancel(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, done.count())
	require.Len(t, first.Recordings, 1)
	assert.Equal(t, first, second)
	assert.FileExists(t, rec.Videos[0].Path, "done keeps the clips")
	assert.True(t, o.IsSettled())
}

func TestCancel_DeletesClips(t *testing.T) {
	fs := newFakeSession()
	o, done := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	a := clipWithFile(t, "a", 2)
	b := clipWithFile(t, "b", 3)
	require.True(t, fs.push(models.FinishedRecording{Recording: a}))
	require.True(t, fs.push(models.FinishedRecording{Recording: b}))
	require.Eventually(t, func() bool { return len(o.Clips()) == 2 }, time.Second, 5*time.Millisecond)

	res, err := o.Cancel(context.Background(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrCancelled)
	assert.Empty(t, res.Recordings)
	assert.NoFileExists(t, a.Videos[0].Path)
	assert.NoFileExists(t, b.Videos[0].Path)

	_, _ = o.Cancel(context.Background(), errors.New("second"))
	assert.Equal(t, 1, done.count())
}

func TestRecording_CountdownThenRecord(t *testing.T) {
	fs := newFakeSession()
	var (
		mu    sync.Mutex
		ticks []int
	)
	o, _ := newTestOrchestrator(t, fs, func(o *Options) {
		o.Countdown = 3 * time.Second
		o.CountdownTick = 5 * time.Millisecond
		o.OnCountdown = func(remaining int) {
			mu.Lock()
			defer mu.Unlock()
			ticks = append(ticks, remaining)
		}
	})
	require.NoError(t, o.StartStreaming(context.Background()))

	o.StartRecording()
	assert.Contains(t, []models.CameraState{models.StateCountingDown, models.StateRecording}, o.State())
	require.Eventually(t, func() bool { return o.State() == models.StateRecording }, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{3, 2, 1}, ticks)
	mu.Unlock()
	assert.Equal(t, []time.Duration{10 * time.Second}, fs.budgetCalls())

	o.ToggleRecording()
	assert.Equal(t, models.StateReady, o.State())
	fs.mu.Lock()
	assert.Equal(t, 1, fs.stops)
	fs.mu.Unlock()
}

func TestRecording_CancelledCountdownReturnsToReady(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, func(o *Options) {
		o.Countdown = 3 * time.Second
		o.CountdownTick = time.Hour
	})
	require.NoError(t, o.StartStreaming(context.Background()))

	o.ToggleRecording()
	require.Equal(t, models.StateCountingDown, o.State())
	assert.Equal(t, 3, o.Snapshot().CountdownRemaining)

	o.StopRecording()
	assert.Equal(t, models.StateReady, o.State())
	assert.Empty(t, fs.budgetCalls())
}

func TestRecording_OnlyFromReady(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)

	o.StartRecording()
	assert.Equal(t, models.StatePreparing, o.State())
	assert.Empty(t, fs.budgetCalls())
}

func TestRecording_FinishedReturnsToReady(t *testing.T) {
	fs := newFakeSession()
	var clips []models.Recording
	var mu sync.Mutex
	o, _ := newTestOrchestrator(t, fs, func(o *Options) {
		o.OnClip = func(rec models.Recording, _ bool) {
			mu.Lock()
			defer mu.Unlock()
			clips = append(clips, rec)
		}
	})
	require.NoError(t, o.StartStreaming(context.Background()))

	o.StartRecording()
	require.Equal(t, models.StateRecording, o.State())

	require.True(t, fs.push(models.FinishedRecording{Recording: clipWithFile(t, "a", 4)}))
	require.Eventually(t, func() bool { return o.State() == models.StateReady }, time.Second, 5*time.Millisecond)

	snap := o.Snapshot()
	assert.Len(t, snap.Clips, 1)
	assert.InDelta(t, 6.0, snap.RemainingSeconds, 1e-9)
	mu.Lock()
	assert.Len(t, clips, 1)
	mu.Unlock()
}

func TestRecording_DroppedTakeReturnsToReady(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	o.StartRecording()
	require.Equal(t, models.StateRecording, o.State())

	require.True(t, fs.push(models.RecordingDropped{ID: "lost"}))
	require.Eventually(t, func() bool { return o.State() == models.StateReady }, time.Second, 5*time.Millisecond)
	assert.Empty(t, o.Clips())
}

func TestRecording_BudgetExhaustedIsNoOp(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	require.True(t, fs.push(models.FinishedRecording{Recording: clipWithFile(t, "a", 10)}))
	require.Eventually(t, func() bool { return o.Snapshot().HasReachedMax }, time.Second, 5*time.Millisecond)

	o.StartRecording()
	assert.Equal(t, models.StateReady, o.State())
	assert.Empty(t, fs.budgetCalls())
}

func TestSetCameraMode(t *testing.T) {
	fs := newFakeSession()
	r := &fakeRenderer{}
	o, _ := newTestOrchestrator(t, fs, func(o *Options) {
		o.NewRenderer = func() Renderer { return r }
	})
	require.NoError(t, o.StartStreaming(context.Background()))

	require.NoError(t, o.SetCameraMode(models.ModeDual))
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.dual
	}, time.Second, 5*time.Millisecond)
	eff, _ := fs.EffectiveTopology()
	assert.Equal(t, models.ModeDual, eff.Mode)

	o.StartRecording()
	assert.ErrorIs(t, o.SetCameraMode(models.ModeSingle), ErrRecordingInProgress)

	// flipping is allowed while recording
	o.FlipCamera()
	eff, _ = fs.EffectiveTopology()
	assert.Equal(t, models.FacingFront, eff.Facing)

	r.mu.Lock()
	assert.Equal(t, 2, r.purges)
	r.mu.Unlock()
}

func TestFlashAndZoom(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)

	// not streaming: remembered but not sent
	assert.True(t, o.ToggleFlash())
	o.UpdateZoom(2)
	assert.Empty(t, fs.flash)

	require.NoError(t, o.StartStreaming(context.Background()))
	assert.False(t, o.ToggleFlash())
	o.UpdateZoom(1.5)
	o.FinishZoom(1.5)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, []bool{false}, fs.flash)
	assert.Equal(t, []float64{1.5, 1.5}, fs.zooms)
}

func TestFrames_RelayedToRenderer(t *testing.T) {
	fs := newFakeSession()
	r := &fakeRenderer{}
	o, _ := newTestOrchestrator(t, fs, func(o *Options) {
		o.NewRenderer = func() Renderer { return r }
	})
	require.NoError(t, o.StartStreaming(context.Background()))

	require.True(t, fs.push(models.PrimaryFrame{}))
	require.True(t, fs.push(models.SecondaryFrame{}))
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.primary == 1 && r.secondary == 1
	}, time.Second, 5*time.Millisecond)

	o.StopStreaming()
	o.StopStreaming()
	assert.False(t, o.Snapshot().Streaming)
	r.mu.Lock()
	assert.Equal(t, 1, r.purges)
	r.mu.Unlock()
}

func TestHandleSignal(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	ctx := context.Background()
	require.NoError(t, o.StartStreaming(ctx))

	o.HandleSignal(ctx, Background())
	assert.False(t, o.Snapshot().Streaming)
	assert.Equal(t, models.StatePreparing, o.State())

	o.HandleSignal(ctx, Foreground())
	assert.Equal(t, models.StateReady, o.State())
	assert.Equal(t, 2, fs.streamCount())

	o.HandleSignal(ctx, InterruptionBegan(capture.ErrDeviceBusy))
	assert.Equal(t, models.StateError, o.State())
	kind, _ := o.Error()
	assert.Equal(t, KindDeviceContention, kind)

	o.HandleSignal(ctx, InterruptionEnded())
	assert.Equal(t, models.StateReady, o.State())
	assert.Equal(t, 3, fs.streamCount())

	o.HandleSignal(ctx, RuntimeError(errors.New("boom")))
	kind, _ = o.Error()
	assert.Equal(t, KindUnknown, kind)

	// only contention recovers by itself
	o.HandleSignal(ctx, InterruptionEnded())
	assert.Equal(t, models.StateError, o.State())

	require.NoError(t, o.Retry(ctx))
	assert.Equal(t, models.StateReady, o.State())

	// foreground without a prior background does nothing
	o.HandleSignal(ctx, Foreground())
	assert.Equal(t, 4, fs.streamCount())
}

func TestHandleSignal_BackgroundStopsRecording(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	ctx := context.Background()
	require.NoError(t, o.StartStreaming(ctx))
	o.StartRecording()

	o.HandleSignal(ctx, Background())
	fs.mu.Lock()
	assert.Equal(t, 1, fs.stops)
	fs.mu.Unlock()
	assert.False(t, o.Snapshot().Streaming)
}

func TestDeleteLastRecording(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	assert.Error(t, o.DeleteLastRecording())

	rec := clipWithFile(t, "a", 3)
	require.True(t, fs.push(models.FinishedRecording{Recording: rec}))
	require.Eventually(t, func() bool { return len(o.Clips()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, o.DeleteLastRecording())
	assert.Empty(t, o.Clips())
	assert.NoFileExists(t, rec.Videos[0].Path)
}

func TestRecording_RestartWaitsForStoppedTake(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	o.StartRecording()
	require.Equal(t, models.StateRecording, o.State())
	o.StopRecording()
	assert.Equal(t, models.StateReady, o.State())

	// the stopped take is not counted yet, so the budget is unknown
	o.StartRecording()
	assert.Equal(t, models.StateReady, o.State())
	assert.Equal(t, []time.Duration{10 * time.Second}, fs.budgetCalls())

	require.True(t, fs.push(models.FinishedRecording{Recording: clipWithFile(t, "a", 6)}))
	require.Eventually(t, func() bool { return len(o.Clips()) == 1 }, time.Second, 5*time.Millisecond)

	o.StartRecording()
	assert.Equal(t, models.StateRecording, o.State())
	assert.Equal(t, []time.Duration{10 * time.Second, 4 * time.Second}, fs.budgetCalls())
}

func TestRecording_RestartAfterDroppedTake(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	o.StartRecording()
	o.StopRecording()
	require.True(t, fs.push(models.RecordingDropped{ID: "lost"}))
	require.Eventually(t, func() bool {
		o.StartRecording()
		return o.State() == models.StateRecording
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, fs.budgetCalls())
}

func TestRecording_SelfStoppedTakeDoesNotBlockRestart(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	require.NoError(t, o.StartStreaming(context.Background()))

	// the session stops on the budget by itself and delivers the clip
	o.StartRecording()
	require.True(t, fs.push(models.FinishedRecording{Recording: clipWithFile(t, "a", 3)}))
	require.Eventually(t, func() bool { return o.State() == models.StateReady }, time.Second, 5*time.Millisecond)

	o.StartRecording()
	assert.Equal(t, models.StateRecording, o.State())
	assert.Equal(t, []time.Duration{10 * time.Second, 7 * time.Second}, fs.budgetCalls())
}

func TestRetry_AfterFailedReconfiguration(t *testing.T) {
	fs := newFakeSession()
	o, _ := newTestOrchestrator(t, fs, nil)
	ctx := context.Background()
	require.NoError(t, o.StartStreaming(ctx))
	o.StartRecording()

	fs.mu.Lock()
	fs.topoErr = fmt.Errorf("cam-front: %w", capture.ErrDeviceBusy)
	fs.mu.Unlock()

	o.FlipCamera()
	require.Eventually(t, func() bool { return o.State() == models.StateError }, time.Second, 5*time.Millisecond)
	kind, _ := o.Error()
	assert.Equal(t, KindDeviceContention, kind)
	assert.False(t, o.Snapshot().Streaming, "a failed reconfiguration tears the stream down")
	fs.mu.Lock()
	assert.Equal(t, 1, fs.stops)
	fs.mu.Unlock()

	fs.mu.Lock()
	fs.topoErr = nil
	fs.mu.Unlock()

	require.NoError(t, o.Retry(ctx))
	assert.Equal(t, models.StateReady, o.State())
	assert.True(t, o.Snapshot().Streaming)
	assert.Equal(t, 2, fs.streamCount())
	eff, _ := fs.EffectiveTopology()
	assert.Equal(t, models.FacingFront, eff.Facing)
}
