// Package beep plays the countdown tones before a take starts.
package beep

import (
	"fmt"
	"os/exec"
	"time"
)

// Descending tones for the last five seconds of a countdown (Hz),
// A5 down to C#5. Longer countdowns hold the top tone.
var tones = []int{554, 622, 698, 784, 880}

// StartTone marks the moment recording begins.
const StartTone = 1108

// Frequency returns the tone for a countdown value; 0 is the start tone.
func Frequency(count int) int {
	switch {
	case count <= 0:
		return StartTone
	case count > len(tones):
		return tones[len(tones)-1]
	default:
		return tones[count-1]
	}
}

// Run executes a player command; tests replace it.
var Run = func(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// Play plays the tone for count using the first player that works, falling
// back to the terminal bell.
func Play(count int) {
	freq := Frequency(count)
	if playTone(freq, 100*time.Millisecond) {
		return
	}
	if playSystemSound() {
		return
	}
	fmt.Print("\a")
}

// playTone pipes an ffmpeg sine wave into PipeWire or ALSA.
func playTone(freq int, d time.Duration) bool {
	gen := fmt.Sprintf("ffmpeg -f lavfi -i 'sine=frequency=%d:duration=%.2f' -f wav - 2>/dev/null", freq, d.Seconds())
	for _, sink := range []string{"pw-cat --playback -", "aplay -q -"} {
		if err := Run("bash", "-c", gen+" | "+sink+" 2>/dev/null"); err == nil {
			return true
		}
	}
	return false
}

func playSystemSound() bool {
	for _, sound := range []string{
		"/usr/share/sounds/freedesktop/stereo/message.oga",
		"/usr/share/sounds/freedesktop/stereo/bell.oga",
	} {
		if err := Run("paplay", sound); err == nil {
			return true
		}
	}
	return false
}
