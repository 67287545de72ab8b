package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Messages from the orchestrator callbacks
type clipMsg struct {
	rec     models.Recording
	reached bool
}
type countdownMsg int
type cameraErrorMsg struct {
	kind camera.ErrorKind
	err  error
}
type completeMsg camera.Result

// Bridge turns orchestrator callbacks into tea messages. Wire its methods into
// camera.Options before the program starts.
type Bridge struct {
	ch chan tea.Msg
}

// NewBridge creates a bridge with a buffered event channel.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan tea.Msg, 64)}
}

// Events is read by the program, one message per command.
func (b *Bridge) Events() <-chan tea.Msg { return b.ch }

func (b *Bridge) OnClip(rec models.Recording, budgetReached bool) {
	b.send(clipMsg{rec: rec, reached: budgetReached})
}

func (b *Bridge) OnCountdown(remaining int) { b.send(countdownMsg(remaining)) }

func (b *Bridge) OnError(kind camera.ErrorKind, err error) {
	b.send(cameraErrorMsg{kind: kind, err: err})
}

func (b *Bridge) OnComplete(res camera.Result) { b.send(completeMsg(res)) }

// send never blocks the orchestrator; the snapshot poll covers a dropped message.
func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return <-ch
	}
}
