package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// StatusError is a non-2xx answer from the control API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("control API returned %d", e.Code)
	}
	return fmt.Sprintf("control API returned %d: %s", e.Code, e.Message)
}

// Client talks to a running `serve` process.
type Client struct {
	baseURL string
	r       *resty.Client
}

// NewClient creates a client for the API at addr (host:port or a full URL).
func NewClient(addr string) *Client {
	base := addr
	if len(base) < 7 || (base[:7] != "http://" && (len(base) < 8 || base[:8] != "https://")) {
		base = "http://" + base
	}
	r := resty.New().
		SetBaseURL(base).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{baseURL: base, r: r}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.r.R().
		SetContext(ctx).
		SetError(&ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("failed to reach dualcam service at %s: %w", c.baseURL, err)
	}
	if resp.IsError() {
		se := &StatusError{Code: resp.StatusCode()}
		if e, ok := resp.Error().(*ErrorResponse); ok && e != nil {
			se.Message = e.Error
		}
		return se
	}
	return nil
}

// Status returns the camera snapshot.
func (c *Client) Status(ctx context.Context) (models.CameraStatus, error) {
	var st models.CameraStatus
	err := c.do(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

// Clips returns the finished clips.
func (c *Client) Clips(ctx context.Context) ([]models.Recording, error) {
	var clips []models.Recording
	err := c.do(ctx, http.MethodGet, "/clips", nil, &clips)
	return clips, err
}

func (c *Client) post(ctx context.Context, path string, body any) (models.CameraStatus, error) {
	var st models.CameraStatus
	err := c.do(ctx, http.MethodPost, path, body, &st)
	return st, err
}

func (c *Client) StartRecording(ctx context.Context) (models.CameraStatus, error) {
	return c.post(ctx, "/record/start", nil)
}

func (c *Client) StopRecording(ctx context.Context) (models.CameraStatus, error) {
	return c.post(ctx, "/record/stop", nil)
}

func (c *Client) ToggleRecording(ctx context.Context) (models.CameraStatus, error) {
	return c.post(ctx, "/record/toggle", nil)
}

func (c *Client) FlipCamera(ctx context.Context) (models.CameraStatus, error) {
	return c.post(ctx, "/camera/flip", nil)
}

func (c *Client) SetCameraMode(ctx context.Context, mode models.Mode) (models.CameraStatus, error) {
	return c.post(ctx, "/camera/mode", ModeRequest{Mode: string(mode)})
}

func (c *Client) Zoom(ctx context.Context, factor float64, commit bool) (models.CameraStatus, error) {
	return c.post(ctx, "/camera/zoom", ZoomRequest{Factor: factor, Commit: commit})
}

func (c *Client) Retry(ctx context.Context) (models.CameraStatus, error) {
	return c.post(ctx, "/retry", nil)
}

// Lifecycle sends background, foreground, interruption-began or interruption-ended.
func (c *Client) Lifecycle(ctx context.Context, signal string) (models.CameraStatus, error) {
	return c.post(ctx, "/lifecycle/"+signal, nil)
}

// ToggleFlash flips the torch and returns the new setting.
func (c *Client) ToggleFlash(ctx context.Context) (bool, error) {
	var res FlashResponse
	err := c.do(ctx, http.MethodPost, "/camera/flash", nil, &res)
	return res.Flash, err
}

// DeleteLastRecording removes the most recent clip.
func (c *Client) DeleteLastRecording(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/clips/last", nil, nil)
}

// Done ends the session keeping the clips.
func (c *Client) Done(ctx context.Context) (FinishResponse, error) {
	var res FinishResponse
	err := c.do(ctx, http.MethodPost, "/done", nil, &res)
	return res, err
}

// Cancel ends the session discarding the clips.
func (c *Client) Cancel(ctx context.Context, reason string) (FinishResponse, error) {
	var res FinishResponse
	err := c.do(ctx, http.MethodPost, "/cancel", CancelRequest{Reason: reason}, &res)
	return res, err
}
