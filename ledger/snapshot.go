package ledger

import (
	"fmt"
	"time"

	"github.com/rustyeddy/arena/market"
)

// CycleSnapshot is an account's valuation at the end of one cycle.
type CycleSnapshot struct {
	Cycle          int       `json:"cycle"`
	Time           time.Time `json:"timestamp"`
	PortfolioValue float64   `json:"portfolio_value"`
	Cash           float64   `json:"cash_balance"`
	TotalReturnPct float64   `json:"total_return"`
	TotalTrades    int       `json:"total_trades"`
	WinRate        float64   `json:"win_rate"`
	OpenPositions  int       `json:"num_positions"`
	RealizedPL     float64   `json:"realized_pl"`
	UnrealizedPL   float64   `json:"unrealized_pl"`
}

// Revalue marks every position with a usable quote to market. Positions
// without one keep their previous mark. Cash, realized P&L and history are
// not touched.
func Revalue(a *Account, quotes market.QuoteSet) {
	for inst, p := range a.Positions {
		q, ok := quotes[inst]
		if !ok {
			continue
		}
		mark := q.Mark()
		if !PositiveFinite(mark) {
			continue
		}
		p.mark(mark)
	}
}

// Snapshot projects the account's current state; it does not append.
func Snapshot(a *Account, cycle int, now time.Time) CycleSnapshot {
	return CycleSnapshot{
		Cycle:          cycle,
		Time:           now,
		PortfolioValue: a.PortfolioValue(),
		Cash:           a.Cash,
		TotalReturnPct: a.TotalReturnPct(),
		TotalTrades:    a.TotalTrades,
		WinRate:        a.WinRate(),
		OpenPositions:  len(a.Positions),
		RealizedPL:     a.RealizedPL,
		UnrealizedPL:   a.UnrealizedPL(),
	}
}

// AppendSnapshot adds s to the cycle history. Cycle numbers must run
// 1, 2, 3... without gaps or repeats.
func (a *Account) AppendSnapshot(s CycleSnapshot) error {
	want := a.LastCycle() + 1
	if s.Cycle != want {
		return fmt.Errorf("append snapshot %s: want cycle %d got %d: %w", a.ID, want, s.Cycle, ErrCycleGap)
	}
	a.Cycles = append(a.Cycles, s)
	return nil
}
