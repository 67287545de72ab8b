// Package capture owns the capture hardware: it routes cameras and the
// microphone to outputs, streams live frames to one consumer and drives the
// per-output encoders of an active recording.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-dualcam/internal/encoder"
	xlog "github.com/kartoza/kartoza-dualcam/internal/log"
	"github.com/kartoza/kartoza-dualcam/internal/metrics"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Stop reasons used for logging and metrics.
const (
	StopManual   = "manual"
	StopBudget   = "budget"
	StopShutdown = "shutdown"
)

// Config configures a Session.
type Config struct {
	Hardware     Hardware
	ScratchDir   string
	Format       encoder.Format
	Encoder      encoder.Config
	Layout       models.Layout
	Rotation     int
	QueueSize    int
	StreamBuffer int
	Logger       zerolog.Logger
}

// Session is the capture session. Its routing state, its hardware and every
// sample delivery are owned by a single serial executor; exported methods only
// enqueue work onto it.
type Session struct {
	cfg    Config
	hw     Hardware
	logger zerolog.Logger
	q      *serialQueue
	closed chan struct{}

	// finalizations still running, waited for by Close
	inflight sync.WaitGroup

	// cross-goroutine views of executor state
	effective atomic.Pointer[models.Topology]
	running   atomic.Bool
	recording atomic.Bool
	zoom      atomic.Uint64

	// owned by the executor
	state executorState
}

type executorState struct {
	configured bool
	requested  models.Topology
	primary    Device
	inputs     map[string]bool
	zoom       map[string]float64
	flash      bool

	hwRunning bool
	sub       *subscription
	nextSubID uint64

	recording bool
	encoders  encoderSet
	budget    time.Duration
	take      take
}

// take describes the recording in flight.
type take struct {
	id     string
	mode   models.Mode
	layout models.Layout
}

type subscription struct {
	id         uint64
	events     chan models.StreamEvent
	finalizing sync.WaitGroup
}

// NewSession creates an idle session around hw.
func NewSession(cfg Config) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = 8
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.Encoder.FrameRate == 0 {
		cfg.Encoder = encoder.DefaultConfig()
	}
	if cfg.Format == "" {
		cfg.Format = encoder.FormatRaw
	}
	if cfg.Layout == (models.Layout{}) {
		cfg.Layout = models.DefaultLayout()
	}

	s := &Session{
		cfg:    cfg,
		hw:     cfg.Hardware,
		logger: cfg.Logger,
		q:      newSerialQueue(cfg.QueueSize),
		closed: make(chan struct{}),
		state: executorState{
			requested: models.DefaultTopology(),
			inputs:    make(map[string]bool),
			zoom:      make(map[string]float64),
			encoders:  noEncoders{},
		},
	}
	s.zoom.Store(math.Float64bits(1))
	return s
}

// Devices lists the hardware's devices.
func (s *Session) Devices() []Device {
	return s.hw.Devices()
}

// HasCamera reports whether at least one camera was discovered.
func (s *Session) HasCamera() bool {
	for _, d := range s.hw.Devices() {
		if d.Kind == DeviceCamera {
			return true
		}
	}
	return false
}

// EffectiveTopology is the routing actually in place. It differs from the
// requested topology when dual mode was requested on hardware that cannot
// stream two cameras at once.
func (s *Session) EffectiveTopology() (models.Topology, bool) {
	t := s.effective.Load()
	if t == nil {
		return models.Topology{}, false
	}
	return *t, true
}

// IsRunning reports whether the hardware is streaming.
func (s *Session) IsRunning() bool { return s.running.Load() }

// IsRecording reports whether a recording is in progress.
func (s *Session) IsRecording() bool { return s.recording.Load() }

// ZoomFactor returns the zoom currently applied to the primary camera.
func (s *Session) ZoomFactor() float64 { return math.Float64frombits(s.zoom.Load()) }

// Layout returns the placement rectangles recordings are tagged with.
func (s *Session) Layout() models.Layout { return s.cfg.Layout }

// SetTopology reconfigures routing. The returned channel receives the result
// once the reconfiguration ran; callers may ignore it.
func (s *Session) SetTopology(t models.Topology) <-chan error {
	result := make(chan error, 1)
	if !s.q.async(func() { result <- s.applyTopology(t) }) {
		result <- errQueueClosed
	}
	return result
}

// SetFlash turns the primary camera's torch on or off.
func (s *Session) SetFlash(on bool) {
	s.q.async(func() {
		s.state.flash = on
		s.applyFlash()
	})
}

// UpdateZoom provisionally applies committed*factor to the primary camera.
func (s *Session) UpdateZoom(factor float64) {
	s.q.async(func() { s.applyZoom(factor, false) })
}

// FinishZoom applies and commits committed*factor to the primary camera.
func (s *Session) FinishZoom(factor float64) {
	s.q.async(func() { s.applyZoom(factor, true) })
}

// StartRecording allocates one encoder per connected video output. It is a
// no-op when budget <= 0, when already recording or when not streaming.
func (s *Session) StartRecording(budget time.Duration) {
	s.q.async(func() { s.startRecording(budget) })
}

// StopRecording finalizes the in-flight recording, if any. The resulting
// FinishedRecording event is pushed onto the stream once every output is finalized.
func (s *Session) StopRecording() {
	s.q.async(func() { s.stopRecording(StopManual) })
}

// Stream starts the hardware and returns the live event stream. A previous
// stream is ended first. Cancelling ctx stops recording, then the hardware;
// the channel is closed after any in-flight recording has been delivered.
func (s *Session) Stream(ctx context.Context, flash bool) (<-chan models.StreamEvent, error) {
	var (
		sub *subscription
		err error
	)
	// ctx only governs the stream's lifetime; the start itself always completes
	if qerr := s.q.sync(context.Background(), func() { sub, err = s.startStream(flash) }); qerr != nil {
		return nil, qerr
	}
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.q.async(func() { s.endStream(sub) })
		case <-s.closed:
		}
	}()
	return sub.events, nil
}

// Close ends the stream and stops the executor. It waits for in-flight
// finalizations to be delivered until ctx is done; recordings still pending
// after that are discarded.
func (s *Session) Close(ctx context.Context) error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	_ = s.q.sync(context.Background(), func() {
		if s.state.sub != nil {
			s.endStream(s.state.sub)
		} else {
			s.stopRecording(StopShutdown)
			s.stopHardware()
		}
	})

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	close(s.closed)
	<-drained
	s.q.close()
	return err
}

// sync runs fn on the executor; used by tests as a barrier.
func (s *Session) sync(fn func()) {
	_ = s.q.sync(context.Background(), fn)
}

// ---- executor-owned methods below ----

func (s *Session) applyTopology(t models.Topology) error {
	st := &s.state
	if st.configured && t.SameRouting(st.requested) {
		return nil
	}

	primary, secondary, err := s.pickCameras(t.Facing)
	if err != nil {
		return err
	}

	multi := s.hw.MultiCamSupported()
	dual := t.Mode == models.ModeDual && multi && secondary != nil

	want := map[string]bool{primary.ID: true}
	if dual {
		want[secondary.ID] = true
	}

	if st.configured && st.hwRunning && st.flash && st.primary.HasTorch && st.primary.ID != primary.ID {
		_ = s.hw.SetTorch(st.primary.ID, false)
	}

	s.hw.BeginConfiguration()
	s.hw.DisconnectVideo()

	// release cameras that are no longer routed before claiming new ones;
	// without multi-cam support only one camera input may be held
	var errs []error
	for id := range st.inputs {
		if s.isCamera(id) && !want[id] {
			if err := s.hw.RemoveInput(id); err != nil {
				errs = append(errs, err)
			}
			delete(st.inputs, id)
		}
	}
	if err := s.claim(primary.ID); err != nil {
		errs = append(errs, err)
	} else if err := s.hw.Connect(primary.ID, models.OutputPrimary, s.connectionOptions(primary)); err != nil {
		errs = append(errs, err)
	}
	if dual {
		if err := s.claim(secondary.ID); err != nil {
			errs = append(errs, err)
		} else if err := s.hw.Connect(secondary.ID, models.OutputSecondary, s.connectionOptions(*secondary)); err != nil {
			errs = append(errs, err)
		}
	}
	if mic, ok := s.microphone(); ok && !st.inputs[mic.ID] {
		if err := s.claim(mic.ID); err != nil {
			errs = append(errs, err)
		} else if err := s.hw.Connect(mic.ID, models.OutputAudio, ConnectionOptions{}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.hw.CommitConfiguration(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to configure capture topology: %w", err)
	}

	effective := t
	if !dual {
		effective.Mode = models.ModeSingle
	}
	effective.Flash = st.flash
	st.requested = t
	st.primary = primary
	st.configured = true
	s.effective.Store(&effective)

	if z, ok := st.zoom[primary.ID]; ok {
		s.zoom.Store(math.Float64bits(z))
	} else {
		s.zoom.Store(math.Float64bits(1))
	}
	if st.hwRunning {
		s.applyFlash()
	}

	s.logger.Info().
		Str(xlog.FieldFacing, string(t.Facing)).
		Str(xlog.FieldMode, string(effective.Mode)).
		Str("requested_mode", string(t.Mode)).
		Bool("multicam", multi).
		Msg("capture topology configured")
	return nil
}

func (s *Session) pickCameras(f models.Facing) (Device, *Device, error) {
	pos := PositionBack
	if f == models.FacingFront {
		pos = PositionFront
	}
	var (
		primary   *Device
		secondary *Device
		fallback  *Device
	)
	for _, d := range s.hw.Devices() {
		d := d
		if d.Kind != DeviceCamera {
			continue
		}
		switch {
		case d.Position == pos && primary == nil:
			primary = &d
		case d.Position != pos && secondary == nil:
			secondary = &d
		}
		if fallback == nil {
			fallback = &d
		}
	}
	if primary == nil {
		if fallback == nil {
			return Device{}, nil, ErrNoCamera
		}
		// a lone camera serves whichever facing is requested
		return *fallback, nil, nil
	}
	return *primary, secondary, nil
}

func (s *Session) isCamera(id string) bool {
	for _, d := range s.hw.Devices() {
		if d.ID == id {
			return d.Kind == DeviceCamera
		}
	}
	return false
}

func (s *Session) microphone() (Device, bool) {
	for _, d := range s.hw.Devices() {
		if d.Kind == DeviceMicrophone {
			return d, true
		}
	}
	return Device{}, false
}

func (s *Session) claim(id string) error {
	if s.state.inputs[id] {
		return nil
	}
	if err := s.hw.AddInput(id); err != nil {
		return err
	}
	s.state.inputs[id] = true
	return nil
}

func (s *Session) connectionOptions(d Device) ConnectionOptions {
	return ConnectionOptions{
		Mirrored: d.Position == PositionFront,
		Rotation: s.cfg.Rotation,
	}
}

func (s *Session) applyFlash() {
	st := &s.state
	if !st.configured || !st.primary.HasTorch {
		return
	}
	on := st.flash && st.hwRunning
	if err := s.hw.SetTorch(st.primary.ID, on); err != nil {
		s.logger.Warn().Err(err).Str(xlog.FieldDevice, st.primary.ID).Msg("failed to set torch")
		return
	}
	if t := s.effective.Load(); t != nil {
		updated := *t
		updated.Flash = st.flash
		s.effective.Store(&updated)
	}
}

func (s *Session) applyZoom(factor float64, commit bool) {
	st := &s.state
	if !st.configured || factor <= 0 {
		return
	}
	committed, ok := st.zoom[st.primary.ID]
	if !ok {
		committed = 1
	}
	z := st.primary.ClampZoom(committed * factor)
	if err := s.hw.SetZoom(st.primary.ID, z); err != nil {
		s.logger.Warn().Err(err).Float64("zoom", z).Msg("failed to set zoom")
		return
	}
	s.zoom.Store(math.Float64bits(z))
	if commit {
		st.zoom[st.primary.ID] = z
	}
}

func (s *Session) startStream(flash bool) (*subscription, error) {
	st := &s.state
	if st.sub != nil {
		s.retire(st.sub)
	}
	if !st.configured {
		if err := s.applyTopology(st.requested); err != nil {
			return nil, err
		}
	}
	if !st.hwRunning {
		if err := s.hw.Start(s.deliver); err != nil {
			return nil, fmt.Errorf("failed to start capture hardware: %w", err)
		}
		st.hwRunning = true
		s.running.Store(true)
		s.logger.Info().Msg("capture session running")
	}
	st.flash = flash
	s.applyFlash()

	st.nextSubID++
	sub := &subscription{
		id:     st.nextSubID,
		events: make(chan models.StreamEvent, s.cfg.StreamBuffer),
	}
	st.sub = sub
	return sub, nil
}

// endStream stops recording first, then the hardware, then retires sub.
func (s *Session) endStream(sub *subscription) {
	if sub != s.state.sub {
		return
	}
	s.stopRecording(StopShutdown)
	s.stopHardware()
	s.retire(sub)
}

func (s *Session) stopHardware() {
	st := &s.state
	if !st.hwRunning {
		return
	}
	if st.configured && st.primary.HasTorch && st.flash {
		_ = s.hw.SetTorch(st.primary.ID, false)
	}
	if err := s.hw.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to stop capture hardware")
	}
	st.hwRunning = false
	s.running.Store(false)
	s.logger.Info().Msg("capture session stopped")
}

// retire detaches sub and closes its channel once its pending recordings are delivered.
func (s *Session) retire(sub *subscription) {
	if s.state.sub == sub {
		s.state.sub = nil
	}
	go func() {
		sub.finalizing.Wait()
		close(sub.events)
	}()
}

// deliver is the hardware callback. It may run on any goroutine.
func (s *Session) deliver(sample models.Sample) {
	owned := sample
	owned.Data = append([]byte(nil), sample.Data...)
	if !s.q.tryAsync(func() { s.handleSample(owned) }) {
		metrics.IncSampleDropped(sample.Output)
	}
}

func (s *Session) handleSample(sample models.Sample) {
	st := &s.state
	if !st.hwRunning {
		return
	}

	switch sample.Output {
	case models.OutputPrimary:
		s.emitFrame(models.PrimaryFrame{Sample: sample}, sample.Output)
	case models.OutputSecondary:
		s.emitFrame(models.SecondaryFrame{Sample: sample}, sample.Output)
	}

	if !st.recording {
		return
	}

	if sample.Kind == models.KindAudio {
		for _, enc := range st.encoders.all() {
			enc.AppendAudio(sample)
		}
		return
	}

	enc := st.encoders.forOutput(sample.Output)
	if enc == nil {
		return
	}
	enc.AppendVideo(sample)

	if sample.Output == models.OutputPrimary && enc.RecordedDuration().Duration() >= st.budget {
		s.logger.Info().
			Float64(xlog.FieldBudget, st.budget.Seconds()).
			Msg("recording budget reached")
		s.stopRecording(StopBudget)
	}
}

func (s *Session) emitFrame(ev models.StreamEvent, out models.Output) {
	sub := s.state.sub
	if sub == nil {
		return
	}
	select {
	case sub.events <- ev:
		metrics.IncFrameDelivered(out)
	default:
		metrics.IncFrameDropped(out)
	}
}

func (s *Session) startRecording(budget time.Duration) {
	st := &s.state
	if budget <= 0 || st.recording || !st.hwRunning {
		return
	}
	if err := os.MkdirAll(s.cfg.ScratchDir, 0755); err != nil {
		s.logger.Error().Err(err).Str(xlog.FieldPath, s.cfg.ScratchDir).Msg("failed to create scratch directory")
		return
	}

	effective, _ := s.EffectiveTopology()
	tk := take{
		id:     uuid.NewString(),
		mode:   effective.Mode,
		layout: s.cfg.Layout,
	}
	encLogger := s.logger.With().Str(xlog.FieldRecordingID, tk.id).Logger()

	newEncoder := func(out models.Output) *encoder.Encoder {
		path := filepath.Join(s.cfg.ScratchDir, tk.id+"-"+out.String()+s.cfg.Format.Extension())
		enc := encoder.New(s.cfg.Encoder, encLogger.With().Str(xlog.FieldOutput, out.String()).Logger())
		_ = enc.Start(path, s.cfg.Format)
		return enc
	}

	if tk.mode == models.ModeDual {
		st.encoders = dualEncoders{
			primary:   newEncoder(models.OutputPrimary),
			secondary: newEncoder(models.OutputSecondary),
		}
	} else {
		st.encoders = singleEncoder{primary: newEncoder(models.OutputPrimary)}
	}
	st.recording = true
	st.budget = budget
	st.take = tk
	s.recording.Store(true)

	s.logger.Info().
		Str(xlog.FieldRecordingID, tk.id).
		Str(xlog.FieldMode, string(tk.mode)).
		Float64(xlog.FieldBudget, budget.Seconds()).
		Msg("recording started")
}

// stopRecording flips the recording flag before anything is finalized so no
// further sample reaches the encoders, then finalizes them off the executor.
func (s *Session) stopRecording(reason string) {
	st := &s.state
	if !st.recording {
		return
	}
	st.recording = false
	s.recording.Store(false)

	set := st.encoders
	st.encoders = noEncoders{}
	tk := st.take
	sub := st.sub
	if sub != nil {
		sub.finalizing.Add(1)
	}
	s.inflight.Add(1)

	go func() {
		defer s.inflight.Done()
		if sub != nil {
			defer sub.finalizing.Done()
		}
		rec, ok := s.finalize(set, tk, reason)
		if !ok {
			if sub != nil {
				select {
				case sub.events <- models.RecordingDropped{ID: tk.id}:
				case <-s.closed:
				}
			}
			return
		}
		if sub == nil {
			s.logger.Warn().Str(xlog.FieldRecordingID, rec.ID).Msg("recording finished without a consumer, discarding")
			removeFiles(rec.Paths())
			return
		}
		select {
		case sub.events <- models.FinishedRecording{Recording: rec}:
		case <-s.closed:
			removeFiles(rec.Paths())
		}
	}()
}

// finalize joins the encoders and assembles the recording. When the primary
// output fails the take is dropped; when only the secondary fails the take is
// kept as a single-camera recording.
func (s *Session) finalize(set encoderSet, tk take, reason string) (models.Recording, bool) {
	res := stopEncoders(context.Background(), set)

	if res.primaryErr != nil {
		metrics.IncFinalizationFailure(models.OutputPrimary)
		s.logger.Error().Err(res.primaryErr).Str(xlog.FieldRecordingID, tk.id).Msg("primary output failed to finalize, dropping recording")
		if res.dual && res.secondaryErr == nil {
			removeFiles([]string{res.secondary.Path})
		}
		return models.Recording{}, false
	}

	rec := models.Recording{
		ID:        tk.id,
		Duration:  res.primary.Duration,
		CreatedAt: time.Now(),
		Videos:    []models.Video{{Path: res.primary.Path, Placement: models.FullFrame}},
	}
	mode := models.ModeSingle
	if res.dual {
		if res.secondaryErr != nil {
			metrics.IncFinalizationFailure(models.OutputSecondary)
			s.logger.Error().Err(res.secondaryErr).Str(xlog.FieldRecordingID, tk.id).Msg("secondary output failed to finalize, keeping primary only")
		} else {
			mode = models.ModeDual
			rec.Videos[0].Placement = tk.layout.Primary
			rec.Videos = append(rec.Videos, models.Video{Path: res.secondary.Path, Placement: tk.layout.Secondary})
		}
	}

	metrics.ObserveRecording(mode, reason, rec)
	s.logger.Info().
		Str(xlog.FieldRecordingID, rec.ID).
		Str(xlog.FieldMode, string(mode)).
		Str("reason", reason).
		Float64(xlog.FieldDuration, rec.Duration.Seconds()).
		Msg("recording finished")
	return rec, true
}

func removeFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
