package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// ========================================
// Brand Colors - Kartoza standard palette
// ========================================

var (
	ColorOrange   = lipgloss.Color("#DDA036") // Primary/Active
	ColorBlue     = lipgloss.Color("#569FC6") // Secondary/Links
	ColorGray     = lipgloss.Color("#9A9EA0") // Inactive/Subtle
	ColorWhite    = lipgloss.Color("#FFFFFF") // Text
	ColorDarkGray = lipgloss.Color("#3A3A3A") // Background
	ColorRed      = lipgloss.Color("#E95420") // Error/Recording
	ColorGreen    = lipgloss.Color("#4CAF50") // Success
)

// HeaderWidth is the standard width for the header
const HeaderWidth = 60

const divider = "────────────────────────────────────────────────────────────"

// HeaderState is the dynamic part of the header.
type HeaderState struct {
	State     models.CameraState
	Topology  models.Topology
	Clips     int
	Remaining string
	BlinkOn   bool
}

// RenderHeader renders the application header with an optional status line.
func RenderHeader(screenTitle string, state *HeaderState) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorOrange).
		Align(lipgloss.Center).
		Width(HeaderWidth)

	mottoStyle := lipgloss.NewStyle().
		Italic(true).
		Foreground(ColorGray).
		Align(lipgloss.Center).
		Width(HeaderWidth)

	dividerStyle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Width(HeaderWidth)

	lines := []string{
		titleStyle.Render("Kartoza DualCam - " + screenTitle),
		mottoStyle.Render("both sides of the story"),
		dividerStyle.Render(divider),
	}
	if state != nil {
		lines = append(lines, renderStatusLine(state), dividerStyle.Render(divider))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func renderStatusLine(state *HeaderState) string {
	label, color := stateLabel(state.State, state.BlinkOn)
	styled := lipgloss.NewStyle().Foreground(color).Bold(true).Render(label)

	camera := string(state.Topology.Facing)
	if state.Topology.Mode == models.ModeDual {
		camera += " + " + string(state.Topology.Facing.Flipped())
	}
	remaining := state.Remaining
	if remaining == "" {
		remaining = "∞"
	}

	line := fmt.Sprintf("%s  |  Camera: %s  |  Clips: %d  |  Left: %s",
		styled, camera, state.Clips, remaining)
	return lipgloss.NewStyle().
		Foreground(ColorWhite).
		Align(lipgloss.Center).
		Width(HeaderWidth).
		Render(line)
}

func stateLabel(s models.CameraState, blinkOn bool) (string, lipgloss.Color) {
	switch s {
	case models.StateReady:
		return "Ready", ColorGreen
	case models.StateCountingDown:
		return "Get ready", ColorOrange
	case models.StateRecording:
		if blinkOn {
			return "● REC", ColorRed
		}
		return "○ REC", ColorRed
	case models.StateError:
		return "Error", ColorRed
	default:
		return "Preparing", ColorGray
	}
}

// RenderHelpFooter renders the standard help footer at the bottom of the screen
func RenderHelpFooter(helpText string, width int) string {
	helpStyle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true)

	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(helpStyle.Render(helpText))
}

// LayoutWithHeaderFooter places header and content at the top and the footer at the bottom.
func LayoutWithHeaderFooter(header, content, footer string, width, height int) string {
	main := lipgloss.JoinVertical(lipgloss.Center, header, "", content)
	placed := lipgloss.Place(width, height-2, lipgloss.Center, lipgloss.Top, main)
	return lipgloss.JoinVertical(lipgloss.Left, placed, footer)
}

// formatSeconds renders a duration as M:SS.s
func formatSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	m := int(sec) / 60
	return fmt.Sprintf("%d:%04.1f", m, sec-float64(m*60))
}

// renderClipList renders the finished clips, newest last.
func renderClipList(clips []models.Recording, max int) string {
	if len(clips) == 0 {
		return InactiveStyle.Render("No clips yet")
	}
	start := 0
	if len(clips) > max {
		start = len(clips) - max
	}
	var sb strings.Builder
	for i := start; i < len(clips); i++ {
		c := clips[i]
		kind := "single"
		if c.IsDual() {
			kind = "dual"
		}
		fmt.Fprintf(&sb, "%s %s %s\n",
			LabelStyle.Render(fmt.Sprintf("#%d", i+1)),
			ValueStyle.Render(formatSeconds(c.Duration.Seconds())),
			SubtitleStyle.Render(kind))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Box style for content areas
var BoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorOrange).
	Padding(0, 1)

// Recording box
var RecordingBoxStyle = BoxStyle.BorderForeground(ColorRed)

// Title style for section headings
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorOrange)

// Subtitle style
var SubtitleStyle = lipgloss.NewStyle().
	Foreground(ColorBlue)

// Label style for form labels
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// Value style for displaying values
var ValueStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// Inactive style for inactive items
var InactiveStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// Error style for error messages
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// Success style for success messages
var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen).
	Bold(true)
