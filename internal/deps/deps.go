// Package deps checks the external tools a dualcam session can use.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/kartoza/kartoza-dualcam/internal/encoder"
)

// Dependency is an external executable.
type Dependency struct {
	Name        string // Command name (e.g., "ffmpeg")
	Description string
	Required    bool // If true, the session cannot record without it
}

// CheckResult contains the result of checking a dependency
type CheckResult struct {
	Dependency Dependency
	Available  bool
	Path       string
	Error      error
}

// OptionalDeps enhance a session but are never required.
var OptionalDeps = []Dependency{
	{Name: "ffprobe", Description: "Inspect finished clips"},
	{Name: "notify-send", Description: "Desktop notifications for finished clips"},
	{Name: "pw-cat", Description: "PipeWire playback for countdown beeps"},
	{Name: "aplay", Description: "ALSA playback for countdown beeps"},
	{Name: "paplay", Description: "PulseAudio fallback sound for countdown beeps"},
}

// Lookup resolves executables; tests replace it.
var Lookup = exec.LookPath

// ForFormat returns the dependencies required to write clips in format.
func ForFormat(format encoder.Format, ffmpegPath string) []Dependency {
	if !format.NeedsFFmpeg() {
		return nil
	}
	name := ffmpegPath
	if name == "" {
		name = "ffmpeg"
	}
	return []Dependency{{
		Name:        name,
		Description: fmt.Sprintf("Encode %s clips", format.Extension()),
		Required:    true,
	}}
}

// Check verifies if a single dependency is available
func Check(dep Dependency) CheckResult {
	result := CheckResult{Dependency: dep}
	path, err := Lookup(dep.Name)
	if err != nil {
		result.Error = err
		return result
	}
	result.Available = true
	result.Path = path
	return result
}

// CheckAll verifies the dependencies of format and every optional one.
func CheckAll(format encoder.Format, ffmpegPath string) (required []CheckResult, optional []CheckResult) {
	for _, dep := range ForFormat(format, ffmpegPath) {
		required = append(required, Check(dep))
	}
	for _, dep := range OptionalDeps {
		optional = append(optional, Check(dep))
	}
	return required, optional
}

// MissingRequired returns the required dependencies of format that cannot be found.
func MissingRequired(format encoder.Format, ffmpegPath string) []CheckResult {
	var missing []CheckResult
	for _, dep := range ForFormat(format, ffmpegPath) {
		if r := Check(dep); !r.Available {
			missing = append(missing, r)
		}
	}
	return missing
}

// Available reports whether the named optional tool can be found.
func Available(name string) bool {
	_, err := Lookup(name)
	return err == nil
}

// FormatMissing returns a formatted string of missing dependencies
func FormatMissing(results []CheckResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Missing dependencies:\n\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "  • %s (REQUIRED)\n", r.Dependency.Name)
		fmt.Fprintf(&sb, "    %s\n\n", r.Dependency.Description)
	}
	return sb.String()
}

// FormatAll returns a formatted string of all dependency check results
func FormatAll(required, optional []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("Required dependencies:\n")
	if len(required) == 0 {
		sb.WriteString("  (none for this container format)\n")
	}
	for _, r := range required {
		writeResult(&sb, r, "✗")
	}

	sb.WriteString("\nOptional dependencies:\n")
	for _, r := range optional {
		writeResult(&sb, r, "○")
	}
	return sb.String()
}

func writeResult(sb *strings.Builder, r CheckResult, missing string) {
	status := "✓"
	if !r.Available {
		status = missing
	}
	fmt.Fprintf(sb, "  %s %s - %s\n", status, r.Dependency.Name, r.Dependency.Description)
	if r.Available {
		fmt.Fprintf(sb, "      Path: %s\n", r.Path)
	}
}
