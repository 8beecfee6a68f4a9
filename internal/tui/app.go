// Package tui renders the now-playing view and translates keypresses
// into session commands.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/castkit/castkit/internal/core"
	castErrors "github.com/castkit/castkit/internal/errors"
	"github.com/castkit/castkit/internal/mediasurface"
	"github.com/castkit/castkit/internal/session"
	"github.com/castkit/castkit/internal/tui/styles"
)

type tickMsg time.Time

// App is the bubbletea model for the now-playing view.
type App struct {
	ctl     *session.Controller
	surface *mediasurface.MemorySurface
	refresh time.Duration

	snap     core.Snapshot
	progress progress.Model
	width    int
	lastTick time.Time
	quitting bool
}

// Run starts the TUI and blocks until the user quits.
func Run(ctl *session.Controller, surface *mediasurface.MemorySurface, refresh time.Duration) error {
	if refresh == 0 {
		refresh = 500 * time.Millisecond
	}
	app := &App{
		ctl:      ctl,
		surface:  surface,
		refresh:  refresh,
		snap:     ctl.Snapshot(),
		progress: progress.New(progress.WithDefaultGradient()),
	}
	_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
	return err
}

// Init schedules the first refresh tick.
func (a *App) Init() tea.Cmd {
	return a.tick()
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles key presses and refresh ticks.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.progress.Width = msg.Width - 20
		return a, nil

	case tickMsg:
		now := time.Time(msg)
		// A tick arriving far later than scheduled means the process
		// was stopped (ctrl+z or similar). Report the gap so the
		// session can check for playback divergence.
		if !a.lastTick.IsZero() {
			if gap := now.Sub(a.lastTick); gap > a.refresh*4 && gap > 2*time.Second {
				a.ctl.HandleForeground(gap)
			}
		}
		a.lastTick = now
		a.snap = a.ctl.Snapshot()
		return a, a.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case " ":
			// The resume command must issue synchronously inside this
			// key handler; see session.Controller.TogglePlayPause.
			a.ctl.TogglePlayPause()
		case "left", "h":
			a.ctl.SkipBackward()
		case "right", "l":
			a.ctl.SkipForward()
		case "s":
			a.ctl.CycleSpeed()
		case "z":
			a.ctl.CycleSleepTimer()
		}
		a.snap = a.ctl.Snapshot()
		return a, nil
	}

	return a, nil
}

// View renders the now-playing panel.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	snap := a.snap
	md := a.surface.Metadata()

	width := a.width
	if width == 0 {
		width = 80
	}

	title := md.Title
	if title == "" && snap.HasEpisode() {
		title = snap.Episode.Title
	}
	if title == "" {
		return styles.Panel.Width(width - 2).Render(styles.Muted.Render("No episode loaded"))
	}

	lines := []string{
		fmt.Sprintf("%s %s", styles.StatusIcon(snap.IsPlaying), styles.Title.Render(title)),
	}
	if md.ShowTitle != "" {
		lines = append(lines, styles.Subtitle.Render(md.ShowTitle))
	}
	lines = append(lines, "")

	switch {
	case snap.IsLoading:
		lines = append(lines, styles.Muted.Render("Loading..."))
	case snap.HasError:
		lines = append(lines, styles.ErrorText.Render("Playback failed"))
		if s := castErrors.GetSuggestion(castErrors.ErrLoadFailed); s != "" {
			lines = append(lines, styles.Dim.Render(s))
		}
	case snap.State == core.StateRecovering:
		lines = append(lines, styles.Muted.Render("Reconnecting..."))
	default:
		bar := a.progress.ViewAs(snap.ProgressPercent() / 100)
		lines = append(lines, fmt.Sprintf("%s %s %s",
			formatTime(snap.CurrentTime), bar, formatTime(snap.Duration)))
	}

	lines = append(lines, "",
		styles.Dim.Render(fmt.Sprintf("speed %.2gx   sleep %s",
			snap.PlaybackSpeed, snap.SleepTimerLabel)),
		"",
		styles.Dim.Render("space play/pause  ←/→ skip  s speed  z sleep  q quit"),
	)

	return styles.Panel.Width(width - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatTime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
