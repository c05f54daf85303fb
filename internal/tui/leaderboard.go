package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rustyeddy/arena/journal"
	"github.com/rustyeddy/arena/ledger"
)

const leaderboardHeader = "%-4s %-18s %12s %12s %9s %7s %6s %4s"

// RenderLeaderboard draws the ranked agent table for st. selected is the
// highlighted row, or -1 for none.
func RenderLeaderboard(st *journal.State, selected int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Leaderboard  cycle %d", st.CurrentCycle)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf(leaderboardHeader,
		"#", "Agent", "Value", "Cash", "Return", "Trades", "Win%", "Pos")))
	b.WriteString("\n")

	if len(st.Agents) == 0 {
		b.WriteString(mutedStyle.Render("no agents"))
		return b.String()
	}

	for i, a := range st.Agents {
		line := fmt.Sprintf("%-4d %-18s %12.2f %12.2f %9s %7d %6.1f %4d",
			i+1, truncate(a.Name, 18), a.PortfolioValue, a.CashBalance,
			fmt.Sprintf("%+.2f%%", a.TotalReturnPct), a.TotalTrades, a.WinRate, len(a.Positions))
		style := rowStyle
		if i == selected {
			style = selectedRowStyle
		}
		b.WriteString(style.Render(line))
		if i < len(st.Agents)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderAgent draws one agent's positions and most recent trades.
func RenderAgent(a journal.AgentRecord, recent int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(a.Name))
	b.WriteString(mutedStyle.Render(" (" + a.ID + ")"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "cash %.2f  realized %s  unrealized %s  W/L %d/%d\n",
		a.CashBalance, signed(a.RealizedPL, ""), signed(a.UnrealizedPL, ""), a.Wins, a.Losses)

	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %-5s %12s %12s %12s %12s",
		"Instrument", "Side", "Qty", "Entry", "Mark", "P/L")))
	b.WriteString("\n")
	if len(a.Positions) == 0 {
		b.WriteString(mutedStyle.Render("no open positions"))
		b.WriteString("\n")
	}
	for _, p := range a.Positions {
		fmt.Fprintf(&b, "%-12s %-5s %12.6f %12.2f %12.2f %s\n",
			p.Instrument, p.Side(), math.Abs(p.Quantity), p.EntryPrice, p.MarkPrice,
			lipgloss.PlaceHorizontal(12, lipgloss.Right, signed(p.UnrealizedPL, "")))
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Recent trades"))
	trades := a.TradeHistory
	if len(trades) > recent {
		trades = trades[len(trades)-recent:]
	}
	if len(trades) == 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("none"))
	}
	for i := len(trades) - 1; i >= 0; i-- {
		b.WriteString("\n")
		b.WriteString(tradeLine(trades[i]))
	}
	return b.String()
}

func tradeLine(t ledger.Trade) string {
	line := fmt.Sprintf("%s %-5s %-10s %.6f @ %.2f",
		t.Time.Format("15:04:05"), t.Kind, t.Instrument, t.Quantity, t.Price)
	if !t.Filled() {
		return warnStyle.Render(line + " REJECTED " + string(t.Reason))
	}
	return rowStyle.Render(line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
