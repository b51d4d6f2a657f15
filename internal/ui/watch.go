package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/easycontrols/internal/protocol"
)

// Source is the unit a watch dashboard polls
type Source interface {
	Host() string
	Refresh(ctx context.Context) error
	State() (snap protocol.Snapshot, ok bool, available bool)
	LastUpdate() time.Time
	LastError() error
}

type refreshDoneMsg struct {
	err error
}

type pollMsg time.Time

type watchKeyMap struct {
	Help key.Binding
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Help, k.Quit}}
}

// WatchModel is a dashboard that refreshes one unit on an interval
type WatchModel struct {
	Name     string
	Source   Source
	Interval time.Duration
	Timeout  time.Duration

	Width      int
	Refreshing bool
	Err        error

	Spinner spinner.Model
	Help    help.Model
	Keys    watchKeyMap

	now func() time.Time
}

// NewWatchModel creates a dashboard polling source every interval
func NewWatchModel(name string, source Source, interval time.Duration) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WatchModel{
		Name:     name,
		Source:   source,
		Interval: interval,
		Timeout:  30 * time.Second,
		Width:    GetTerminalWidth(),
		Spinner:  s,
		Help:     help.New(),
		Keys: watchKeyMap{
			Help: key.NewBinding(
				key.WithKeys("?"),
				key.WithHelp("?", "toggle help"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		now: time.Now,
	}
}

// Init starts the first refresh
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return pollMsg(time.Time{}) },
		m.Spinner.Tick,
	)
}

func (m WatchModel) refresh() tea.Cmd {
	source, timeout := m.Source, m.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return refreshDoneMsg{err: source.Refresh(ctx)}
	}
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Help):
			m.Help.ShowAll = !m.Help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Help.Width = msg.Width

	case pollMsg:
		if m.Refreshing {
			return m, nil
		}
		m.Refreshing = true
		return m, m.refresh()

	case refreshDoneMsg:
		m.Refreshing = false
		m.Err = msg.err
		return m, tea.Tick(m.Interval, func(t time.Time) tea.Msg { return pollMsg(t) })

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard
func (m WatchModel) View() string {
	snap, ok, available := m.Source.State()

	view := SnapshotView{
		Name:       m.Name,
		Host:       m.Source.Host(),
		Available:  available,
		LastUpdate: m.Source.LastUpdate(),
		LastError:  m.Source.LastError(),
		Now:        m.now(),
	}
	if ok {
		view.Snapshot = &snap
	}

	status := NoteStyle.Render("  Refreshing every " + m.Interval.String())
	if m.Refreshing {
		status = "  " + m.Spinner.View() + " " + NoteStyle.Render("Reading "+view.Host+"...")
	}
	if m.Err != nil {
		status = ErrorMessageStyle.Render("  " + m.Err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		RenderSnapshot(view, m.Width),
		status,
		HelpStyle.Render(m.Help.View(m.Keys)),
	)
}

// RunWatch runs the dashboard full screen until the user quits or ctx is done
func RunWatch(ctx context.Context, m WatchModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
