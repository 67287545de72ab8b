// Package api is the HTTP control surface of a running camera session and
// the client the CLI uses to talk to it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
	"github.com/kartoza/kartoza-dualcam/internal/metrics"
	"github.com/kartoza/kartoza-dualcam/internal/models"
	"github.com/kartoza/kartoza-dualcam/internal/recordings"
)

// Controller is the camera the server drives. *camera.Orchestrator implements it.
type Controller interface {
	Snapshot() models.CameraStatus
	Clips() []models.Recording
	StartRecording()
	StopRecording()
	ToggleRecording()
	FlipCamera()
	SetCameraMode(mode models.Mode) error
	ToggleFlash() bool
	UpdateZoom(factor float64)
	FinishZoom(factor float64)
	DeleteLastRecording() error
	Retry(ctx context.Context) error
	HandleSignal(ctx context.Context, sig camera.Signal)
	Done(ctx context.Context) (camera.Result, error)
	Cancel(ctx context.Context, reason error) (camera.Result, error)
}

// ModeRequest selects the camera mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// ZoomRequest applies a pinch factor; Commit finishes the gesture.
type ZoomRequest struct {
	Factor float64 `json:"factor"`
	Commit bool    `json:"commit"`
}

// FlashResponse reports the torch setting after a toggle.
type FlashResponse struct {
	Flash bool `json:"flash"`
}

// CancelRequest carries an optional cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// FinishResponse is the result of done or cancel.
type FinishResponse struct {
	Recordings []models.Recording `json:"recordings"`
	Error      string             `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves the control API.
type Server struct {
	ctrl   Controller
	logger zerolog.Logger
	router *chi.Mux
}

// NewServer builds the router around ctrl.
func NewServer(ctrl Controller, logger zerolog.Logger) *Server {
	s := &Server{ctrl: ctrl, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(s.observe)

	r.Get("/status", s.handleStatus)
	r.Get("/clips", s.handleClips)
	r.Delete("/clips/last", s.handleDeleteLast)

	r.Route("/record", func(r chi.Router) {
		r.Post("/start", s.action(s.ctrl.StartRecording))
		r.Post("/stop", s.action(s.ctrl.StopRecording))
		r.Post("/toggle", s.action(s.ctrl.ToggleRecording))
	})

	r.Route("/camera", func(r chi.Router) {
		r.Post("/flip", s.action(s.ctrl.FlipCamera))
		r.Post("/mode", s.handleMode)
		r.Post("/flash", s.handleFlash)
		r.Post("/zoom", s.handleZoom)
	})

	r.Post("/retry", s.handleRetry)
	r.Post("/lifecycle/{signal}", s.handleLifecycle)
	r.Post("/done", s.handleDone)
	r.Post("/cancel", s.handleCancel)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// observe logs and measures every request by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, route, status, elapsed.Seconds())
		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("api request")
	})
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("control API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down control API: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleClips(w http.ResponseWriter, _ *http.Request) {
	clips := s.ctrl.Clips()
	if clips == nil {
		clips = []models.Recording{}
	}
	writeJSON(w, http.StatusOK, clips)
}

// action wraps a fire-and-forget control call; the response is the snapshot after it.
func (s *Server) action(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fn()
		writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
	}
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctrl.SetCameraMode(mode); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleFlash(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FlashResponse{Flash: s.ctrl.ToggleFlash()})
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Factor <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("zoom factor must be positive, got %v", req.Factor))
		return
	}
	if req.Commit {
		s.ctrl.FinishZoom(req.Factor)
	} else {
		s.ctrl.UpdateZoom(req.Factor)
	}
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleDeleteLast(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.DeleteLastRecording(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Retry(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var sig camera.Signal
	switch chi.URLParam(r, "signal") {
	case "background":
		sig = camera.Background()
	case "foreground":
		sig = camera.Foreground()
	case "interruption-began":
		sig = camera.InterruptionBegan(nil)
	case "interruption-ended":
		sig = camera.InterruptionEnded()
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown lifecycle signal %q", chi.URLParam(r, "signal")))
		return
	}
	// signals outlive the request
	s.ctrl.HandleSignal(context.WithoutCancel(r.Context()), sig)
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.Done(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse(res))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}
	var reason error
	if req.Reason != "" {
		reason = errors.New(req.Reason)
	}
	res, err := s.ctrl.Cancel(r.Context(), reason)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse(res))
}

func finishResponse(res camera.Result) FinishResponse {
	out := FinishResponse{Recordings: res.Recordings}
	if out.Recordings == nil {
		out.Recordings = []models.Recording{}
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, recordings.ErrNothingToDelete), errors.Is(err, camera.ErrRecordingInProgress):
		return http.StatusConflict
	}
	switch camera.Classify(err) {
	case camera.KindPermissionsMissing:
		return http.StatusForbidden
	case camera.KindHardwareAbsent, camera.KindDeviceContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}
