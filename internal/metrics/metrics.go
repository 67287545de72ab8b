// Package metrics exposes prometheus instrumentation for the capture pipeline.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

var (
	// FramesDelivered counts live frames handed to the stream consumer.
	FramesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualcam_frames_delivered_total",
		Help: "Live frames delivered to the stream consumer by output",
	}, []string{"output"})

	// FramesDropped counts frames dropped because the consumer was behind.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualcam_frames_dropped_total",
		Help: "Live frames dropped because the stream consumer was slow",
	}, []string{"output"})

	// SamplesDropped counts hardware samples dropped because the session queue was full.
	SamplesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualcam_samples_dropped_total",
		Help: "Hardware samples dropped before reaching the session queue",
	}, []string{"output"})

	// RecordingsFinished counts recordings by mode and how they stopped.
	RecordingsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualcam_recordings_finished_total",
		Help: "Finished recordings by camera mode and stop reason",
	}, []string{"mode", "reason"})

	// RecordingDuration observes the recorded duration of each finished clip.
	RecordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dualcam_recording_duration_seconds",
		Help:    "Recorded duration of finished clips",
		Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
	})

	// FinalizationFailures counts encoder stops that did not produce a file.
	FinalizationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualcam_finalization_failures_total",
		Help: "Encoder finalizations that failed by output",
	}, []string{"output"})

	// StateTransitions counts orchestrator state changes.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualcam_state_transitions_total",
		Help: "Camera orchestrator state transitions by target state",
	}, []string{"state"})

	// HTTPRequestDuration observes control API latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dualcam_http_request_duration_seconds",
		Help:    "Control API request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// IncFrameDelivered records a frame pushed to the stream.
func IncFrameDelivered(out models.Output) {
	FramesDelivered.WithLabelValues(out.String()).Inc()
}

// IncFrameDropped records a frame the stream consumer never saw.
func IncFrameDropped(out models.Output) {
	FramesDropped.WithLabelValues(out.String()).Inc()
}

// IncSampleDropped records a sample lost before the session queue.
func IncSampleDropped(out models.Output) {
	SamplesDropped.WithLabelValues(out.String()).Inc()
}

// ObserveRecording records a finished recording.
// reason ∈ {manual, budget, shutdown}
func ObserveRecording(mode models.Mode, reason string, rec models.Recording) {
	RecordingsFinished.WithLabelValues(string(mode), reason).Inc()
	RecordingDuration.Observe(rec.Duration.Seconds())
}

// IncFinalizationFailure records an encoder that failed to finalize.
func IncFinalizationFailure(out models.Output) {
	FinalizationFailures.WithLabelValues(out.String()).Inc()
}

// IncStateTransition records an orchestrator state change.
func IncStateTransition(state models.CameraState) {
	StateTransitions.WithLabelValues(string(state)).Inc()
}

// ObserveHTTPRequest records one control API request.
func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
