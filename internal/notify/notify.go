// Package notify sends desktop notifications about a camera session.
package notify

import (
	"fmt"
	"os/exec"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Urgency levels for notifications
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

const appName = "Kartoza DualCam"

// Command builds the notifier process; tests replace it.
var Command = exec.Command

// Send sends a desktop notification using notify-send
func Send(title, body string, urgency Urgency, icon string) error {
	args := []string{"--app-name=" + appName, title, body}
	if urgency != "" {
		args = append(args, "--urgency="+string(urgency))
	}
	if icon != "" {
		args = append(args, "--icon="+icon)
	}
	return Command("notify-send", args...).Run()
}

// ClipFinished announces a finished take.
func ClipFinished(rec models.Recording, remaining models.Time, unlimited bool) error {
	kind := "Single-camera"
	if rec.IsDual() {
		kind = "Dual-camera"
	}
	body := fmt.Sprintf("%s clip, %.1fs", kind, rec.Duration.Seconds())
	if !unlimited {
		body += fmt.Sprintf(" (%.1fs left)", remaining.Seconds())
	}
	return Send("Clip saved", body, UrgencyNormal, "camera-video")
}

// BudgetReached announces that no recording time is left.
func BudgetReached() error {
	return Send("Recording limit reached", "Delete a clip to record again", UrgencyNormal, "dialog-information")
}

// CameraError announces a failure the session cannot clear on its own.
func CameraError(kind string, err error) error {
	return Send("Camera unavailable", fmt.Sprintf("%s: %v", kind, err), UrgencyCritical, "dialog-error")
}

// SessionComplete announces the final set of clips.
func SessionComplete(count int, dir string) error {
	return Send("Session complete", fmt.Sprintf("%d clip(s) in %s", count, dir), UrgencyLow, "video-x-generic")
}
