// Package tui is the terminal front end of a camera session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kartoza/kartoza-dualcam/internal/beep"
	"github.com/kartoza/kartoza-dualcam/internal/camera"
	"github.com/kartoza/kartoza-dualcam/internal/models"
	"github.com/kartoza/kartoza-dualcam/internal/notify"
)

// Camera is the orchestrator as seen by the TUI.
type Camera interface {
	Snapshot() models.CameraStatus
	StartStreaming(ctx context.Context) error
	ToggleRecording()
	StopRecording()
	FlipCamera()
	SetCameraMode(mode models.Mode) error
	ToggleFlash() bool
	FinishZoom(factor float64)
	DeleteLastRecording() error
	Retry(ctx context.Context) error
	Done(ctx context.Context) (camera.Result, error)
	Cancel(ctx context.Context, reason error) (camera.Result, error)
}

// Frames renders the live preview.
type Frames interface {
	HasFrame() bool
	ASCII(cols, rows int) string
	Kitty(cols, rows int) (string, error)
}

// Options configures the TUI.
type Options struct {
	Camera Camera
	Frames Frames
	Bridge *Bridge
	// Kitty renders the preview with the Kitty graphics protocol instead of ASCII.
	Kitty         bool
	Beeps         bool
	Notifications bool
	OutputDir     string
}

// Key bindings
type keyMap struct {
	Toggle     key.Binding
	Cancel     key.Binding
	Flip       key.Binding
	Mode       key.Binding
	Flash      key.Binding
	ZoomIn     key.Binding
	ZoomOut    key.Binding
	DeleteLast key.Binding
	Retry      key.Binding
	Done       key.Binding
	Discard    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Flip, k.Mode, k.Done, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Cancel, k.Flip, k.Mode},
		{k.Flash, k.ZoomIn, k.ZoomOut, k.DeleteLast},
		{k.Retry, k.Done, k.Discard, k.Quit, k.Help},
	}
}

var keys = keyMap{
	Toggle:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "record/stop")),
	Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel countdown")),
	Flip:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "flip")),
	Mode:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "single/dual")),
	Flash:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "flash")),
	ZoomIn:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
	DeleteLast: key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "delete last")),
	Retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Done:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "done")),
	Discard:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "discard all")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

const (
	zoomStep    = 1.25
	previewCols = 48
	previewRows = 14
)

// Messages
type tickMsg time.Time
type blinkMsg struct{}
type streamStartedMsg struct{ err error }
type actionErrMsg struct{ err error }

// Model is the camera screen.
type Model struct {
	opts     Options
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	budget   progress.Model
	status   models.CameraStatus
	width    int
	height   int
	blinkOn  bool
	flash    bool
	count    int
	message  string
	err      error
	finished bool
	result   camera.Result
}

// NewModel creates the camera screen.
func NewModel(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorOrange)

	return Model{
		opts:    opts,
		keys:    keys,
		help:    help.New(),
		spinner: s,
		budget: progress.New(
			progress.WithSolidFill(string(ColorOrange)),
			progress.WithoutPercentage(),
			progress.WithWidth(40),
		),
		status:  opts.Camera.Snapshot(),
		blinkOn: true,
	}
}

// Init starts streaming and the refresh loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		startStreaming(m.opts.Camera),
		tickCmd(),
		blinkCmd(),
		m.waitForEvent(),
	)
}

func (m Model) waitForEvent() tea.Cmd {
	if m.opts.Bridge == nil {
		return nil
	}
	return waitForEvent(m.opts.Bridge.Events())
}

func startStreaming(cam Camera) tea.Cmd {
	return func() tea.Msg {
		return streamStartedMsg{err: cam.StartStreaming(context.Background())}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func blinkCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return blinkMsg{}
	})
}

func finishCmd(cam Camera, discard bool) tea.Cmd {
	return func() tea.Msg {
		var res camera.Result
		var err error
		if discard {
			res, err = cam.Cancel(context.Background(), nil)
		} else {
			res, err = cam.Done(context.Background())
		}
		if err != nil {
			return actionErrMsg{err: err}
		}
		return completeMsg(res)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.finished {
			return m, nil
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.status = m.opts.Camera.Snapshot()
		if m.status.State != models.StateCountingDown {
			m.count = 0
		}
		return m, tickCmd()

	case blinkMsg:
		m.blinkOn = !m.blinkOn
		return m, blinkCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamStartedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.status = m.opts.Camera.Snapshot()
		return m, nil

	case actionErrMsg:
		m.err = msg.err
		return m, nil

	case countdownMsg:
		m.count = int(msg)
		if m.opts.Beeps {
			go beep.Play(m.count)
		}
		return m, m.waitForEvent()

	case clipMsg:
		m.status = m.opts.Camera.Snapshot()
		m.message = fmt.Sprintf("Saved clip %d (%s)", len(m.status.Clips), formatSeconds(msg.rec.Duration.Seconds()))
		if msg.reached {
			m.message += " - recording limit reached"
		}
		if m.opts.Notifications {
			go m.notifyClip(msg)
		}
		return m, m.waitForEvent()

	case cameraErrorMsg:
		m.err = msg.err
		if m.opts.Notifications {
			go func() { _ = notify.CameraError(string(msg.kind), msg.err) }()
		}
		return m, m.waitForEvent()

	case completeMsg:
		if m.finished {
			return m, nil
		}
		m.finished = true
		m.result = camera.Result(msg)
		if m.opts.Notifications && m.result.Err == nil {
			go func() { _ = notify.SessionComplete(len(m.result.Recordings), m.opts.OutputDir) }()
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) notifyClip(msg clipMsg) {
	remaining := models.TimeFromDuration(time.Duration(m.status.RemainingSeconds*float64(time.Second)), models.DefaultTimescale)
	_ = notify.ClipFinished(msg.rec, remaining, m.status.Unlimited)
	if msg.reached {
		_ = notify.BudgetReached()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cam := m.opts.Camera
	m.message = ""

	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Discard):
		return m, finishCmd(cam, true)

	case key.Matches(msg, m.keys.Done):
		return m, finishCmd(cam, false)

	case key.Matches(msg, m.keys.Toggle):
		cam.ToggleRecording()

	case key.Matches(msg, m.keys.Cancel):
		if m.status.State == models.StateCountingDown {
			cam.StopRecording()
			m.count = 0
		}

	case key.Matches(msg, m.keys.Flip):
		cam.FlipCamera()

	case key.Matches(msg, m.keys.Mode):
		next := models.ModeDual
		if m.status.Requested.Mode == models.ModeDual {
			next = models.ModeSingle
		}
		if err := cam.SetCameraMode(next); err != nil {
			m.message = err.Error()
		}

	case key.Matches(msg, m.keys.Flash):
		m.flash = cam.ToggleFlash()

	case key.Matches(msg, m.keys.ZoomIn):
		cam.FinishZoom(zoomStep)

	case key.Matches(msg, m.keys.ZoomOut):
		cam.FinishZoom(1 / zoomStep)

	case key.Matches(msg, m.keys.DeleteLast):
		if err := cam.DeleteLastRecording(); err != nil {
			m.message = err.Error()
		} else {
			m.message = "Deleted the last clip"
		}

	case key.Matches(msg, m.keys.Retry):
		m.err = nil
		return m, func() tea.Msg {
			if err := cam.Retry(context.Background()); err != nil {
				return actionErrMsg{err: err}
			}
			return tickMsg(time.Now())
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	m.status = cam.Snapshot()
	return m, nil
}

// Result is the outcome once the program has quit.
func (m Model) Result() (camera.Result, bool) {
	return m.result, m.finished
}

// View renders the UI using the standard layout
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := RenderHeader("Camera", &HeaderState{
		State:     m.status.State,
		Topology:  m.status.Effective,
		Clips:     len(m.status.Clips),
		Remaining: m.remaining(),
		BlinkOn:   m.blinkOn,
	})

	var content string
	if m.status.State == models.StateCountingDown && m.count > 0 {
		content = renderCountdown(m.count)
	} else {
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.renderPreview(), "  ", m.renderSidebar())
	}

	footer := RenderHelpFooter(m.help.View(m.keys), m.width)
	return LayoutWithHeaderFooter(header, content, footer, m.width, m.height)
}

func (m Model) remaining() string {
	if m.status.Unlimited {
		return ""
	}
	return formatSeconds(m.status.RemainingSeconds)
}

func (m Model) renderPreview() string {
	box := BoxStyle
	if m.status.State == models.StateRecording {
		box = RecordingBoxStyle
	}

	if m.opts.Frames == nil || !m.opts.Frames.HasFrame() {
		waiting := lipgloss.Place(previewCols, previewRows, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" "+InactiveStyle.Render("Waiting for camera..."))
		return box.Render(waiting)
	}
	if m.opts.Kitty {
		if img, err := m.opts.Frames.Kitty(previewCols, previewRows); err == nil {
			return box.Render(img)
		}
	}
	return box.Render(m.opts.Frames.ASCII(previewCols, previewRows))
}

func (m Model) renderSidebar() string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("Camera") + "\n")
	fmt.Fprintf(&sb, "%s %s\n", LabelStyle.Render("Mode:"), ValueStyle.Render(string(m.status.Effective.Mode)))
	if m.status.Requested.Mode != m.status.Effective.Mode {
		sb.WriteString(InactiveStyle.Render("  (dual unavailable)") + "\n")
	}
	fmt.Fprintf(&sb, "%s %s\n", LabelStyle.Render("Facing:"), ValueStyle.Render(string(m.status.Effective.Facing)))
	fmt.Fprintf(&sb, "%s %s\n", LabelStyle.Render("Zoom:"), ValueStyle.Render(fmt.Sprintf("%.1fx", m.status.ZoomFactor)))
	flash := "off"
	if m.flash {
		flash = "on"
	}
	fmt.Fprintf(&sb, "%s %s\n\n", LabelStyle.Render("Flash:"), ValueStyle.Render(flash))

	sb.WriteString(TitleStyle.Render("Clips") + "\n")
	sb.WriteString(renderClipList(m.status.Clips, 5) + "\n\n")

	if !m.status.Unlimited {
		total := m.status.TotalSeconds + m.status.RemainingSeconds
		pct := 1.0
		if total > 0 {
			pct = m.status.TotalSeconds / total
		}
		sb.WriteString(m.budget.ViewAs(pct) + "\n")
		sb.WriteString(LabelStyle.Render(fmt.Sprintf("%s of %s used",
			formatSeconds(m.status.TotalSeconds), formatSeconds(total))) + "\n")
	}

	if m.message != "" {
		sb.WriteString("\n" + SuccessStyle.Render(m.message) + "\n")
	}
	if m.err != nil {
		sb.WriteString("\n" + ErrorStyle.Render(m.err.Error()) + "\n")
		if m.status.State == models.StateError {
			sb.WriteString(InactiveStyle.Render("Press r to retry") + "\n")
		}
	}
	return sb.String()
}

// Run shows the camera screen until the session is done or discarded.
func Run(opts Options) (camera.Result, error) {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return camera.Result{}, fmt.Errorf("camera screen failed: %w", err)
	}
	if m, ok := final.(Model); ok {
		if res, done := m.Result(); done {
			return res, nil
		}
	}
	// killed before settling; discard like any other abandoned session
	return opts.Camera.Cancel(context.Background(), nil)
}
