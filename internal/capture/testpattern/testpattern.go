// Package testpattern is synthetic capture hardware: generated camera frames
// and a microphone tone, paced in real time. It backs the CLI and TUI when no
// physical capture backend is available.
package testpattern

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-dualcam/internal/capture"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Options configures the generator.
type Options struct {
	Width      int
	Height     int
	FPS        int
	SampleRate int
	MultiCam   bool
	Devices    []capture.Device
	// Manual disables the ticker; samples are only produced by Step.
	Manual bool
	Logger zerolog.Logger
}

// DefaultDevices returns a back camera with torch, a front camera and a microphone.
func DefaultDevices() []capture.Device {
	return []capture.Device{
		{ID: "cam-back", Name: "Test Pattern (back)", Kind: capture.DeviceCamera, Position: capture.PositionBack, HasTorch: true, MinZoom: 1, MaxZoom: 8},
		{ID: "cam-front", Name: "Test Pattern (front)", Kind: capture.DeviceCamera, Position: capture.PositionFront, MinZoom: 1, MaxZoom: 3},
		{ID: "mic", Name: "Test Tone", Kind: capture.DeviceMicrophone},
	}
}

// Hardware implements capture.Hardware.
type Hardware struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	inputs  map[string]bool
	conns   []capture.Connection
	busy    map[string]bool
	torch   map[string]bool
	zoom    map[string]float64
	running bool
	handler capture.SampleHandler
	stop    chan struct{}
	done    chan struct{}

	// serializes Step against Stop in manual mode
	stepMu sync.Mutex
	frame  int64
	bufs   buffers
}

type buffers struct {
	video map[models.Output][]byte
	audio []byte
}

// New creates synthetic hardware.
func New(opts Options) *Hardware {
	if opts.Width <= 0 {
		opts.Width = 160
	}
	if opts.Height <= 0 {
		opts.Height = 90
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	if opts.Devices == nil {
		opts.Devices = DefaultDevices()
	}
	frameSize := opts.Width * opts.Height
	return &Hardware{
		bufs: buffers{
			video: map[models.Output][]byte{
				models.OutputPrimary:   make([]byte, frameSize),
				models.OutputSecondary: make([]byte, frameSize),
			},
			audio: make([]byte, opts.SampleRate/opts.FPS*2),
		},
		opts:   opts,
		logger: opts.Logger,
		inputs: make(map[string]bool),
		busy:   make(map[string]bool),
		torch:  make(map[string]bool),
		zoom:   make(map[string]float64),
	}
}

// SetBusy makes AddInput of deviceID fail as if another process held it.
func (h *Hardware) SetBusy(deviceID string, busy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.busy[deviceID] = busy
}

// Torch reports the torch state of a device.
func (h *Hardware) Torch(deviceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.torch[deviceID]
}

// Zoom reports the zoom factor applied to a device.
func (h *Hardware) Zoom(deviceID string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if z, ok := h.zoom[deviceID]; ok {
		return z
	}
	return 1
}

func (h *Hardware) Devices() []capture.Device {
	return append([]capture.Device(nil), h.opts.Devices...)
}

func (h *Hardware) MultiCamSupported() bool { return h.opts.MultiCam }

func (h *Hardware) BeginConfiguration() {}

func (h *Hardware) CommitConfiguration() error { return nil }

func (h *Hardware) AddInput(deviceID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", capture.ErrUnknownDevice, deviceID)
	}
	if h.busy[deviceID] {
		return fmt.Errorf("%s: %w", dev.Name, capture.ErrDeviceBusy)
	}
	if dev.Kind == capture.DeviceCamera && !h.opts.MultiCam {
		for id := range h.inputs {
			if d, _ := h.device(id); d.Kind == capture.DeviceCamera {
				return fmt.Errorf("cannot hold %s and %s without multi-camera support", id, deviceID)
			}
		}
	}
	h.inputs[deviceID] = true
	return nil
}

func (h *Hardware) RemoveInput(deviceID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inputs, deviceID)
	kept := h.conns[:0]
	for _, c := range h.conns {
		if c.DeviceID != deviceID {
			kept = append(kept, c)
		}
	}
	h.conns = kept
	return nil
}

func (h *Hardware) Connect(deviceID string, out models.Output, opts capture.ConnectionOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inputs[deviceID] {
		return fmt.Errorf("device %s is not an input", deviceID)
	}
	for _, c := range h.conns {
		if c.Output == out {
			return fmt.Errorf("output %s already connected to %s", out, c.DeviceID)
		}
	}
	h.conns = append(h.conns, capture.Connection{DeviceID: deviceID, Output: out, Options: opts})
	return nil
}

func (h *Hardware) DisconnectVideo() {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.conns[:0]
	for _, c := range h.conns {
		if c.Output == models.OutputAudio {
			kept = append(kept, c)
		}
	}
	h.conns = kept
}

func (h *Hardware) Connections() []capture.Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]capture.Connection(nil), h.conns...)
}

func (h *Hardware) Start(handler capture.SampleHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	for id := range h.inputs {
		if h.busy[id] {
			return fmt.Errorf("%s: %w", id, capture.ErrDeviceBusy)
		}
	}
	h.running = true
	h.handler = handler
	if h.opts.Manual {
		return nil
	}
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.generate(handler, h.stop, h.done)
	h.logger.Debug().Int("fps", h.opts.FPS).Msg("test pattern started")
	return nil
}

func (h *Hardware) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.handler = nil
	stop, done := h.stop, h.done
	h.mu.Unlock()

	if h.opts.Manual {
		// wait out a Step in progress
		h.stepMu.Lock()
		h.stepMu.Unlock()
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Step produces one tick of samples in manual mode and reports whether the
// hardware was running.
func (h *Hardware) Step() bool {
	h.stepMu.Lock()
	defer h.stepMu.Unlock()
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()
	if handler == nil {
		return false
	}
	h.tick(handler, h.frame)
	h.frame++
	return true
}

func (h *Hardware) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Hardware) SetTorch(deviceID string, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", capture.ErrUnknownDevice, deviceID)
	}
	if !dev.HasTorch {
		return fmt.Errorf("%s has no torch", dev.Name)
	}
	h.torch[deviceID] = on
	return nil
}

func (h *Hardware) SetZoom(deviceID string, factor float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.device(deviceID); !ok {
		return fmt.Errorf("%w: %s", capture.ErrUnknownDevice, deviceID)
	}
	h.zoom[deviceID] = factor
	return nil
}

func (h *Hardware) device(id string) (capture.Device, bool) {
	for _, d := range h.opts.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return capture.Device{}, false
}

// generate produces one tick per frame interval until stop is closed.
func (h *Hardware) generate(handler capture.SampleHandler, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(h.opts.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		h.tick(handler, h.frame)
		h.frame++
	}
}

// tick delivers one frame per connected camera and one audio chunk. Buffers
// are reused between ticks.
func (h *Hardware) tick(handler capture.SampleHandler, n int64) {
	fps := h.opts.FPS
	pts := models.NewTime(n, int32(fps))
	for _, c := range h.Connections() {
		switch c.Output {
		case models.OutputPrimary, models.OutputSecondary:
			buf := h.bufs.video[c.Output]
			h.paint(buf, c, n)
			handler(models.Sample{
				Output:      c.Output,
				Kind:        models.KindVideo,
				PTS:         pts,
				Data:        buf,
				Width:       h.opts.Width,
				Height:      h.opts.Height,
				PixelFormat: "gray",
			})
		case models.OutputAudio:
			samples := len(h.bufs.audio) / 2
			tone(h.bufs.audio, n*int64(samples), h.opts.SampleRate)
			handler(models.Sample{
				Output:     models.OutputAudio,
				Kind:       models.KindAudio,
				PTS:        pts,
				Data:       h.bufs.audio,
				SampleRate: h.opts.SampleRate,
				Channels:   1,
			})
		}
	}
}

// paint draws a diagonal gradient with a moving bar; the front camera is inverted
// and mirrored connections are flipped horizontally.
func (h *Hardware) paint(buf []byte, c capture.Connection, n int64) {
	w, hgt := h.opts.Width, h.opts.Height
	dev, _ := h.device(c.DeviceID)
	zoom := h.Zoom(c.DeviceID)
	bar := int(n*2) % w
	for y := 0; y < hgt; y++ {
		for x := 0; x < w; x++ {
			sx := x
			if c.Options.Mirrored {
				sx = w - 1 - x
			}
			v := byte(float64(sx+y) * zoom)
			if sx >= bar && sx < bar+4 {
				v = 255
			}
			if dev.Position == capture.PositionFront {
				v = 255 - v
			}
			buf[y*w+x] = v
		}
	}
}

// tone writes a 440 Hz sine as signed 16-bit little endian PCM.
func tone(buf []byte, offset int64, rate int) {
	for i := 0; i < len(buf)/2; i++ {
		t := float64(offset+int64(i)) / float64(rate)
		v := int16(math.Sin(2*math.Pi*440*t) * 8000)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
}
