// Package camera is the camera orchestrator: the state machine a host drives
// to stream, count down, record and finally collect or discard clips.
package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/kartoza/kartoza-dualcam/internal/log"
	"github.com/kartoza/kartoza-dualcam/internal/metrics"
	"github.com/kartoza/kartoza-dualcam/internal/models"
	"github.com/kartoza/kartoza-dualcam/internal/recordings"
)

// DefaultCountdown is the delay before a recording starts.
const DefaultCountdown = 3 * time.Second

// Options configures an Orchestrator.
type Options struct {
	Session     Session
	Permissions Permissions
	// NewRenderer is called once, on the first successful StartStreaming.
	NewRenderer func() Renderer

	Budget         time.Duration
	AllowExceeding bool
	// Countdown before recording; a negative value disables it, zero uses DefaultCountdown.
	Countdown time.Duration
	// CountdownTick is the countdown step. Defaults to one second.
	CountdownTick time.Duration
	Topology      models.Topology

	// OnComplete is invoked exactly once with the session's result.
	OnComplete func(Result)
	// OnClip is invoked for every finished clip.
	OnClip func(rec models.Recording, budgetReached bool)
	// OnCountdown is invoked on every countdown step with the steps remaining.
	OnCountdown func(remaining int)
	// OnError is invoked when the orchestrator enters the error state.
	OnError func(kind ErrorKind, err error)

	Logger zerolog.Logger
}

// Orchestrator is safe for concurrent use. Its mutex is the only owner of the
// clip list and the state.
type Orchestrator struct {
	opts    Options
	session Session
	logger  zerolog.Logger
	result  *resultCell
	// closed once Done or Cancel begins
	quit chan struct{}

	mu                 sync.Mutex
	state              models.CameraState
	errKind            ErrorKind
	err                error
	topology           models.Topology
	clips              *recordings.Manager
	renderer           Renderer
	permissionsGranted bool
	initializing       bool
	streaming          bool
	backgrounded       bool
	cancelStream       context.CancelFunc
	streamDone         chan struct{}
	cancelCountdown    context.CancelFunc
	countdownRemaining int
	dismissed          bool
	discardLate        bool
	finalizing         int // stopped takes the session has not delivered yet
}

// New creates an orchestrator in the preparing state.
func New(opts Options) *Orchestrator {
	if opts.Permissions == nil {
		opts.Permissions = StaticPermissions{Camera: true, Microphone: true}
	}
	if opts.Countdown == 0 {
		opts.Countdown = DefaultCountdown
	}
	if opts.CountdownTick <= 0 {
		opts.CountdownTick = time.Second
	}
	if opts.Topology == (models.Topology{}) {
		opts.Topology = models.DefaultTopology()
	}
	return &Orchestrator{
		opts:     opts,
		session:  opts.Session,
		logger:   opts.Logger,
		result:   newResultCell(),
		quit:     make(chan struct{}),
		state:    models.StatePreparing,
		topology: opts.Topology,
		clips:    recordings.NewManager(opts.Budget, opts.AllowExceeding, opts.Logger),
	}
}

// State returns the current state.
func (o *Orchestrator) State() models.CameraState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Clips returns the finished clips in recording order.
func (o *Orchestrator) Clips() []models.Recording {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clips.Clips()
}

// Snapshot describes the orchestrator for status displays.
func (o *Orchestrator) Snapshot() models.CameraStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := models.CameraStatus{
		State:              o.state,
		ErrorKind:          string(o.errKind),
		CountdownRemaining: o.countdownRemaining,
		Requested:          o.topology,
		ZoomFactor:         o.session.ZoomFactor(),
		Clips:              o.clips.Clips(),
		TotalSeconds:       o.clips.TotalDuration().Seconds(),
		HasReachedMax:      o.clips.HasReachedMax(),
		Streaming:          o.streaming,
	}
	if o.err != nil {
		st.Error = o.err.Error()
	}
	if eff, ok := o.session.EffectiveTopology(); ok {
		st.Effective = eff
	}
	if o.clips.AllowsExceeding() {
		st.Unlimited = true
	} else {
		st.RemainingSeconds = o.clips.RemainingDuration().Seconds()
	}
	if st.Clips == nil {
		st.Clips = []models.Recording{}
	}
	return st
}

// StartStreaming checks hardware and permissions, applies the topology and
// starts relaying the session's stream. It is ignored while already streaming
// or initializing.
func (o *Orchestrator) StartStreaming(ctx context.Context) error {
	o.mu.Lock()
	if o.dismissed || o.streaming || o.initializing {
		o.mu.Unlock()
		return nil
	}
	o.initializing = true
	o.backgrounded = false
	o.setState(models.StatePreparing)
	topo := o.topology
	granted := o.permissionsGranted
	o.mu.Unlock()

	err := o.prepare(ctx, topo, granted)

	var events <-chan models.StreamEvent
	streamCtx, cancel := context.WithCancel(context.Background())
	if err == nil {
		events, err = o.session.Stream(streamCtx, topo.Flash)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.initializing = false
	if err != nil {
		cancel()
		o.fail(err)
		return err
	}
	o.permissionsGranted = true
	if o.dismissed {
		cancel()
		return nil
	}

	if o.renderer == nil && o.opts.NewRenderer != nil {
		o.renderer = o.opts.NewRenderer()
	}
	o.applyLayout()

	done := make(chan struct{})
	o.streaming = true
	o.cancelStream = cancel
	o.streamDone = done
	o.errKind, o.err = KindNone, nil
	o.setState(models.StateReady)
	go o.consume(events, done)
	return nil
}

// prepare runs without the lock held; it may block on the session.
func (o *Orchestrator) prepare(ctx context.Context, topo models.Topology, granted bool) error {
	if !o.session.HasCamera() {
		return ErrHardwareAbsent
	}
	if !granted {
		cam := o.opts.Permissions.RequestAccess(ctx, MediaCamera)
		mic := o.opts.Permissions.RequestAccess(ctx, MediaMicrophone)
		if !cam || !mic {
			return ErrPermissionsMissing
		}
	}
	select {
	case err := <-o.session.SetTopology(topo):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume relays the stream until the session closes it.
func (o *Orchestrator) consume(events <-chan models.StreamEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		switch ev := ev.(type) {
		case models.PrimaryFrame:
			if r := o.currentRenderer(); r != nil {
				r.RenderPrimary(ev.Sample)
			}
		case models.SecondaryFrame:
			if r := o.currentRenderer(); r != nil {
				r.RenderSecondary(ev.Sample)
			}
		case models.FinishedRecording:
			o.handleFinished(ev.Recording)
		case models.RecordingDropped:
			o.handleDropped(ev.ID)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamDone != done {
		return
	}
	// nothing more can arrive from this stream
	o.finalizing = 0
	if o.streaming {
		o.streaming = false
		o.cancelStream = nil
		o.logger.Warn().Msg("capture stream ended")
	}
}

func (o *Orchestrator) currentRenderer() Renderer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.renderer
}

func (o *Orchestrator) handleFinished(rec models.Recording) {
	o.mu.Lock()
	if o.discardLate {
		o.mu.Unlock()
		if err := recordings.DeleteFiles(rec); err != nil {
			o.logger.Warn().Err(err).Str(xlog.FieldRecordingID, rec.ID).Msg("failed to discard late recording")
		}
		return
	}
	o.clips.Add(rec)
	o.takeSettled()
	reached := o.clips.HasReachedMax()
	o.logger.Info().
		Str(xlog.FieldRecordingID, rec.ID).
		Int("videos", len(rec.Videos)).
		Float64(xlog.FieldDuration, rec.Duration.Seconds()).
		Float64("total_s", o.clips.TotalDuration().Seconds()).
		Bool("budget_reached", reached).
		Msg("clip added")
	onClip := o.opts.OnClip
	o.mu.Unlock()

	if onClip != nil {
		onClip(rec, reached)
	}
}

// handleDropped leaves recording for a take that produced no file, which a
// budget stop would otherwise never report.
func (o *Orchestrator) handleDropped(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.Warn().Str(xlog.FieldRecordingID, id).Msg("recording dropped")
	o.takeSettled()
}

// takeSettled accounts for a take the session has finished with. A take that
// stopped itself on the budget is still in recording; a stopped one is pending.
func (o *Orchestrator) takeSettled() {
	if o.state == models.StateRecording {
		o.setState(models.StateReady)
	} else if o.finalizing > 0 {
		o.finalizing--
	}
}

// StopStreaming cancels the stream, which stops any recording and then the
// hardware. Idempotent.
func (o *Orchestrator) StopStreaming() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopStreaming()
}

func (o *Orchestrator) stopStreaming() {
	o.stopCountdown()
	if !o.streaming {
		return
	}
	o.cancelStream()
	o.cancelStream = nil
	o.streaming = false
	if o.renderer != nil {
		o.renderer.PurgeBuffers()
	}
	if o.state != models.StateError {
		o.setState(models.StatePreparing)
	}
}

// ToggleRecording starts recording from ready and stops it otherwise.
func (o *Orchestrator) ToggleRecording() {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case models.StateReady:
		o.startRecording()
	case models.StateCountingDown, models.StateRecording:
		o.stopRecording()
	}
}

// StartRecording starts the countdown, or the recording when the countdown
// is disabled. Only valid from ready with budget left.
func (o *Orchestrator) StartRecording() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startRecording()
}

func (o *Orchestrator) startRecording() {
	if o.state != models.StateReady || !o.streaming {
		return
	}
	if o.finalizing > 0 {
		// the remaining budget is unknown until the last clip is counted
		o.logger.Info().Int("pending", o.finalizing).Msg("previous take still finalizing, not starting")
		return
	}
	if o.clips.RemainingDuration() <= 0 {
		o.logger.Info().Msg("recording budget exhausted, not starting")
		return
	}
	if o.opts.Countdown < 0 {
		o.beginRecording()
		return
	}

	steps := int((o.opts.Countdown + time.Second - 1) / time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	o.cancelCountdown = cancel
	o.countdownRemaining = steps
	o.setState(models.StateCountingDown)
	go o.runCountdown(ctx, steps)
}

func (o *Orchestrator) runCountdown(ctx context.Context, steps int) {
	ticker := time.NewTicker(o.opts.CountdownTick)
	defer ticker.Stop()

	for remaining := steps; remaining > 0; remaining-- {
		o.mu.Lock()
		if ctx.Err() != nil {
			o.mu.Unlock()
			return
		}
		o.countdownRemaining = remaining
		onTick := o.opts.OnCountdown
		o.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if ctx.Err() != nil || o.state != models.StateCountingDown {
		return
	}
	o.cancelCountdown = nil
	o.countdownRemaining = 0
	o.beginRecording()
}

func (o *Orchestrator) beginRecording() {
	budget := o.clips.RemainingDuration()
	o.session.StartRecording(budget)
	o.setState(models.StateRecording)
	o.logger.Info().Float64(xlog.FieldBudget, budget.Seconds()).Msg("recording requested")
}

func (o *Orchestrator) stopCountdown() {
	if o.cancelCountdown != nil {
		o.cancelCountdown()
		o.cancelCountdown = nil
	}
	o.countdownRemaining = 0
}

// StopRecording cancels a countdown or stops the recording; both return to ready.
func (o *Orchestrator) StopRecording() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopRecording()
}

func (o *Orchestrator) stopRecording() {
	switch o.state {
	case models.StateCountingDown:
		o.stopCountdown()
		o.setState(models.StateReady)
	case models.StateRecording:
		o.session.StopRecording()
		o.finalizing++
		o.setState(models.StateReady)
	}
}

// FlipCamera swaps which camera is primary.
func (o *Orchestrator) FlipCamera() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.topology.Facing = o.topology.Facing.Flipped()
	o.reconfigure()
}

// SetCameraMode switches between single and dual camera. Not allowed while
// counting down or recording.
func (o *Orchestrator) SetCameraMode(mode models.Mode) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == models.StateRecording || o.state == models.StateCountingDown {
		return ErrRecordingInProgress
	}
	if o.topology.Mode == mode {
		return nil
	}
	o.topology.Mode = mode
	o.reconfigure()
	return nil
}

// reconfigure pushes the requested topology to the session when streaming.
// Failures are routed through fail once the session reports them.
func (o *Orchestrator) reconfigure() {
	if o.renderer != nil {
		o.renderer.PurgeBuffers()
	}
	if !o.streaming {
		return
	}
	result := o.session.SetTopology(o.topology)
	go func() {
		var err error
		select {
		case err = <-result:
		case <-o.quit:
			return
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if err != nil {
			// the session is left without video routing; Retry rebuilds it
			o.stopRecording()
			o.stopStreaming()
			o.fail(err)
			return
		}
		o.applyLayout()
	}()
}

func (o *Orchestrator) applyLayout() {
	if o.renderer == nil {
		return
	}
	eff, ok := o.session.EffectiveTopology()
	if ok && eff.Mode == models.ModeDual {
		layout := o.session.Layout()
		o.renderer.SetCameraLayout(layout.Primary, &layout.Secondary)
		return
	}
	o.renderer.SetCameraLayout(models.FullFrame, nil)
}

// ToggleFlash flips the torch setting and returns the new value.
func (o *Orchestrator) ToggleFlash() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.topology.Flash = !o.topology.Flash
	if o.streaming {
		o.session.SetFlash(o.topology.Flash)
	}
	return o.topology.Flash
}

// UpdateZoom previews a pinch factor relative to the committed zoom.
func (o *Orchestrator) UpdateZoom(factor float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streaming {
		o.session.UpdateZoom(factor)
	}
}

// FinishZoom commits a pinch factor.
func (o *Orchestrator) FinishZoom(factor float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streaming {
		o.session.FinishZoom(factor)
	}
}

// DeleteLastRecording removes the most recent clip and its files.
func (o *Orchestrator) DeleteLastRecording() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clips.DeleteLastRecording()
}

// Retry re-enters preparing from the error state and starts streaming again.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.state != models.StateError || o.dismissed {
		o.mu.Unlock()
		return nil
	}
	o.stopStreaming()
	o.errKind, o.err = KindNone, nil
	o.setState(models.StatePreparing)
	o.mu.Unlock()
	return o.StartStreaming(ctx)
}

// HandleSignal is the single dispatch point for lifecycle and hardware notifications.
func (o *Orchestrator) HandleSignal(ctx context.Context, sig Signal) {
	o.logger.Info().Str(xlog.FieldSignal, sig.Kind.String()).Err(sig.Err).Msg("lifecycle signal")

	switch sig.Kind {
	case SignalBackground:
		o.mu.Lock()
		wasStreaming := o.streaming || o.initializing
		o.stopRecording()
		o.stopStreaming()
		o.backgrounded = wasStreaming
		o.mu.Unlock()

	case SignalForeground:
		o.mu.Lock()
		resume := o.backgrounded && o.state != models.StateError
		o.backgrounded = false
		o.mu.Unlock()
		if resume {
			_ = o.StartStreaming(ctx)
		}

	case SignalInterruptionBegan:
		reason := sig.Err
		if reason == nil {
			reason = ErrDeviceContention
		}
		o.mu.Lock()
		o.stopRecording()
		o.stopStreaming()
		o.fail(reason)
		o.mu.Unlock()

	case SignalInterruptionEnded:
		o.mu.Lock()
		retry := o.state == models.StateError && o.errKind == KindDeviceContention
		o.mu.Unlock()
		if retry {
			_ = o.Retry(ctx)
		}

	case SignalRuntimeError:
		o.mu.Lock()
		o.stopRecording()
		o.stopStreaming()
		o.fail(sig.Err)
		o.mu.Unlock()
	}
}

// Done stops streaming, keeps the clips and reports them. Only the first of
// Done and Cancel settles the result; later calls return it unchanged.
func (o *Orchestrator) Done(ctx context.Context) (Result, error) {
	return o.finish(ctx, func() Result {
		return Result{Recordings: o.clips.Clips()}
	})
}

// Cancel stops streaming, deletes every clip and reports reason, or a default
// cancellation reason when nil.
func (o *Orchestrator) Cancel(ctx context.Context, reason error) (Result, error) {
	return o.finish(ctx, func() Result {
		o.discardLate = true
		if err := o.clips.DeleteAll(); err != nil {
			o.logger.Warn().Err(err).Msg("failed to delete clips on cancel")
		}
		if reason == nil {
			reason = ErrCancelled
			if o.errKind == KindPermissionsMissing {
				reason = ErrPermissionsMissing
			}
		}
		return Result{Err: reason}
	})
}

// finish waits for the stream consumer to drain so no in-flight clip is lost,
// then settles the result with build, which runs under the lock.
func (o *Orchestrator) finish(ctx context.Context, build func() Result) (Result, error) {
	o.mu.Lock()
	if o.dismissed {
		o.mu.Unlock()
		return o.result.wait(ctx)
	}
	o.dismissed = true
	close(o.quit)
	o.stopRecording()
	done := o.streamDone
	o.stopStreaming()
	o.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			o.logger.Warn().Err(ctx.Err()).Msg("gave up waiting for in-flight recordings")
		}
	}

	o.mu.Lock()
	res := build()
	o.mu.Unlock()

	if o.result.settle(res) {
		o.logger.Info().
			Int("clips", len(res.Recordings)).
			AnErr("reason", res.Err).
			Msg("camera session completed")
		if o.opts.OnComplete != nil {
			o.opts.OnComplete(res)
		}
	}
	return o.result.wait(ctx)
}

// IsSettled reports whether Done or Cancel has completed.
func (o *Orchestrator) IsSettled() bool {
	return o.result.isSettled()
}

// fail is the single classification point for session and hardware errors.
func (o *Orchestrator) fail(err error) {
	kind := Classify(err)
	o.stopCountdown()
	o.errKind = kind
	o.err = err
	o.setState(models.StateError)
	o.logger.Error().Err(err).Str("kind", string(kind)).Msg("camera error")
	if o.opts.OnError != nil {
		go o.opts.OnError(kind, err)
	}
}

func (o *Orchestrator) setState(s models.CameraState) {
	if o.state == s {
		return
	}
	o.logger.Debug().
		Str(xlog.FieldOldState, string(o.state)).
		Str(xlog.FieldNewState, string(s)).
		Msg("state changed")
	o.state = s
	metrics.IncStateTransition(s)
}

// Error returns the current error, if any.
func (o *Orchestrator) Error() (ErrorKind, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errKind, o.err
}

// String implements fmt.Stringer for log output.
func (o *Orchestrator) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fmt.Sprintf("camera(%s, %d clips)", o.state, o.clips.Len())
}
