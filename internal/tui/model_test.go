package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/arena/journal"
	"github.com/rustyeddy/arena/ledger"
)

var t0 = time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)

// testState ranks alpha first unless betaAhead is set.
func testState(t *testing.T, cycle int, betaAhead bool) *journal.State {
	t.Helper()
	alpha := ledger.NewAccount("alpha", "Alpha", 1000)
	require.NoError(t, alpha.Record(ledger.Trade{
		ID: "T1", AgentID: "alpha", Instrument: "BTC/USDT", Kind: ledger.Buy,
		Quantity: 1, Price: 100, Value: 100, Time: t0, Status: ledger.Filled,
	}))
	require.NoError(t, alpha.Record(ledger.Trade{
		ID: "T2", AgentID: "alpha", Instrument: "ETH/USDT", Kind: ledger.Buy,
		Quantity: 1, Time: t0, Status: ledger.Rejected, Reason: ledger.ReasonNoQuote,
	}))
	beta := ledger.NewAccount("beta", "Beta", 1000)
	if betaAhead {
		beta.Cash = 1500
	}
	return journal.NewState(cycle, t0, []*ledger.Account{alpha, beta}, nil)
}

func press(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewWaitsForState(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, "state.json")
	assert.Contains(t, m.View(), "Waiting for the first cycle")

	m.Update(feedClosedMsg{})
	assert.Contains(t, m.View(), "No state available")
	assert.Contains(t, m.View(), "feed closed")
}

func TestStateMsgRendersLeaderboard(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, "state.json")
	_, cmd := m.Update(StateMsg{State: testState(t, 3, false)})
	assert.Nil(t, cmd)

	out := m.View()
	assert.Contains(t, out, "cycle 3")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Beta")
	assert.Contains(t, out, "BTC/USDT")
	assert.Contains(t, out, "REJECTED NO_QUOTE")
	assert.Contains(t, out, "updated 12:30:00")
}

func TestListenDeliversStates(t *testing.T) {
	t.Parallel()

	states := make(chan *journal.State, 1)
	m := NewModel(states, "redis")

	st := testState(t, 1, false)
	states <- st
	msg := m.Init()()
	require.IsType(t, StateMsg{}, msg)
	assert.Same(t, st, msg.(StateMsg).State)

	_, next := m.Update(msg)
	require.NotNil(t, next)

	close(states)
	assert.IsType(t, feedClosedMsg{}, next())
}

func TestSelectionMoves(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, "")
	m.Update(StateMsg{State: testState(t, 1, false)})

	a, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "alpha", a.ID)

	m.Update(press("down"))
	a, _ = m.Selected()
	assert.Equal(t, "beta", a.ID)

	m.Update(press("j"))
	a, _ = m.Selected()
	assert.Equal(t, "beta", a.ID, "selection stops at the last row")

	m.Update(press("up"))
	m.Update(press("k"))
	a, _ = m.Selected()
	assert.Equal(t, "alpha", a.ID)
}

func TestSelectionFollowsAgentAcrossReorder(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, "")
	m.Update(StateMsg{State: testState(t, 1, false)})
	m.Update(press("down"))

	m.Update(StateMsg{State: testState(t, 2, true)})
	a, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "beta", a.ID)
	assert.Equal(t, 0, m.selected)
}

func TestQuitKeys(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"q", "ctrl+c"} {
		m := NewModel(nil, "")
		_, cmd := m.Update(press(k))
		require.NotNil(t, cmd, k)
		assert.IsType(t, tea.QuitMsg{}, cmd(), k)
	}
}

func TestStatusBarShowsMissedCheckpoints(t *testing.T) {
	t.Parallel()

	st := testState(t, 4, false)
	st.MissedCheckpoints = []int{2, 3}
	m := NewModel(nil, "file")
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(StateMsg{State: st})
	assert.Contains(t, m.View(), "2 missed checkpoints")
}

func TestRenderLeaderboardRanks(t *testing.T) {
	t.Parallel()

	out := RenderLeaderboard(testState(t, 1, true), -1)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "Beta")
	assert.Contains(t, lines[2], "1500.00")
	assert.Contains(t, lines[3], "Alpha")

	empty := RenderLeaderboard(&journal.State{CurrentCycle: 0}, -1)
	assert.Contains(t, empty, "no agents")
}

func TestRenderAgentLimitsTrades(t *testing.T) {
	t.Parallel()

	a, ok := testState(t, 1, false).Agent("alpha")
	require.True(t, ok)

	out := RenderAgent(a, 1)
	assert.Contains(t, out, "REJECTED")
	assert.NotContains(t, out, "@ 100.00")

	b, _ := testState(t, 1, false).Agent("beta")
	out = RenderAgent(b, 5)
	assert.Contains(t, out, "no open positions")
	assert.Contains(t, out, "none")
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
}
