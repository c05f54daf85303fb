// Package tui is a terminal viewer that follows the arena state as it is
// persisted and shows the leaderboard next to the selected agent.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rustyeddy/arena/journal"
)

const recentTrades = 10

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k")),
	Down: key.NewBinding(key.WithKeys("down", "j")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// StateMsg carries a new arena state into the model.
type StateMsg struct {
	State *journal.State
}

type feedClosedMsg struct{}

// Model is the viewer's bubbletea model.
type Model struct {
	states <-chan *journal.State
	source string

	state    *journal.State
	selected int
	closed   bool

	width  int
	height int
}

// NewModel follows states until the channel closes. source is shown in
// the status bar.
func NewModel(states <-chan *journal.State, source string) *Model {
	return &Model{states: states, source: source}
}

func (m *Model) Init() tea.Cmd {
	return m.listen()
}

func (m *Model) listen() tea.Cmd {
	if m.states == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-m.states
		if !ok {
			return feedClosedMsg{}
		}
		return StateMsg{State: st}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.state != nil && m.selected < len(m.state.Agents)-1 {
				m.selected++
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case StateMsg:
		m.setState(msg.State)
		return m, m.listen()

	case feedClosedMsg:
		m.closed = true
	}
	return m, nil
}

// setState keeps the same agent selected across reorderings.
func (m *Model) setState(st *journal.State) {
	if st == nil {
		return
	}
	prev := m.selectedID()
	m.state = st
	m.selected = 0
	for i, a := range st.Agents {
		if a.ID == prev {
			m.selected = i
			break
		}
	}
}

func (m *Model) selectedID() string {
	if m.state == nil || m.selected >= len(m.state.Agents) {
		return ""
	}
	return m.state.Agents[m.selected].ID
}

// Selected is the agent currently highlighted, if any.
func (m *Model) Selected() (journal.AgentRecord, bool) {
	if m.state == nil || m.selected >= len(m.state.Agents) {
		return journal.AgentRecord{}, false
	}
	return m.state.Agents[m.selected], true
}

func (m *Model) View() string {
	if m.state == nil {
		msg := "Waiting for the first cycle..."
		if m.closed {
			msg = "No state available."
		}
		return lipgloss.JoinVertical(lipgloss.Left, mutedStyle.Render(msg), m.statusBar())
	}

	board := focusedPanelStyle.Render(RenderLeaderboard(m.state, m.selected))
	body := board
	if a, ok := m.Selected(); ok {
		body = lipgloss.JoinVertical(lipgloss.Left, board, panelStyle.Render(RenderAgent(a, recentTrades)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusBar())
}

func (m *Model) statusBar() string {
	help := statusKeyStyle.Render("↑↓") + " select │ " + statusKeyStyle.Render("q") + " quit"
	info := m.source
	if m.state != nil {
		info = fmt.Sprintf("%s │ updated %s", m.source, m.state.GeneratedAt.Format("15:04:05"))
		if n := len(m.state.MissedCheckpoints); n > 0 {
			info += warnStyle.Render(fmt.Sprintf(" │ %d missed checkpoints", n))
		}
	}
	if m.closed {
		info += " │ feed closed"
	}
	style := statusBarStyle
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(help + " │ " + info)
}
