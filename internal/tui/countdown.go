package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Big segment-style digit patterns, 7 lines tall
var bigDigits = map[rune][]string{
	'0': {
		" ███████ ",
		" █     █ ",
		" █     █ ",
		" █     █ ",
		" █     █ ",
		" █     █ ",
		" ███████ ",
	},
	'1': {
		"    █    ",
		"   ██    ",
		"    █    ",
		"    █    ",
		"    █    ",
		"    █    ",
		"   ███   ",
	},
	'2': {
		" ███████ ",
		"       █ ",
		"       █ ",
		" ███████ ",
		" █       ",
		" █       ",
		" ███████ ",
	},
	'3': {
		" ███████ ",
		"       █ ",
		"       █ ",
		" ███████ ",
		"       █ ",
		"       █ ",
		" ███████ ",
	},
	'4': {
		" █     █ ",
		" █     █ ",
		" █     █ ",
		" ███████ ",
		"       █ ",
		"       █ ",
		"       █ ",
	},
	'5': {
		" ███████ ",
		" █       ",
		" █       ",
		" ███████ ",
		"       █ ",
		"       █ ",
		" ███████ ",
	},
	'6': {
		" ███████ ",
		" █       ",
		" █       ",
		" ███████ ",
		" █     █ ",
		" █     █ ",
		" ███████ ",
	},
	'7': {
		" ███████ ",
		"       █ ",
		"      █  ",
		"     █   ",
		"    █    ",
		"    █    ",
		"    █    ",
	},
	'8': {
		" ███████ ",
		" █     █ ",
		" █     █ ",
		" ███████ ",
		" █     █ ",
		" █     █ ",
		" ███████ ",
	},
	'9': {
		" ███████ ",
		" █     █ ",
		" █     █ ",
		" ███████ ",
		"       █ ",
		"       █ ",
		" ███████ ",
	},
}

// bigNumber joins the big digits of n side by side.
func bigNumber(n int) []string {
	if n < 0 {
		return nil
	}
	rows := make([]string, len(bigDigits['0']))
	for _, r := range strconv.Itoa(n) {
		for i, line := range bigDigits[r] {
			rows[i] += line
		}
	}
	return rows
}

// countdownColor shifts from orange to red as the countdown runs out.
func countdownColor(count int) lipgloss.Color {
	switch {
	case count <= 1:
		return ColorRed
	case count <= 3:
		return lipgloss.Color("#FF8C00")
	default:
		return ColorOrange
	}
}

// renderCountdown renders the remaining countdown steps.
func renderCountdown(count int) string {
	digitStyle := lipgloss.NewStyle().
		Foreground(countdownColor(count)).
		Bold(true)

	var lines []string
	for _, line := range bigNumber(count) {
		lines = append(lines, digitStyle.Render(line))
	}

	subtitle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true).
		Render("Get ready... recording starts soon!")
	hint := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render("Press ESC to cancel")

	return lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		strings.Join(lines, "\n"),
		"",
		subtitle,
		"",
		hint,
	)
}
