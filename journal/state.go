package journal

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rustyeddy/arena/ledger"
)

// ErrNoState is returned by Load when nothing has been persisted yet.
var ErrNoState = errors.New("no persisted state")

// Store persists the whole arena state. Save replaces the previous state
// atomically, so a concurrent Load sees either the old or the new state.
type Store interface {
	Save(ctx context.Context, s *State) error
	Load(ctx context.Context) (*State, error)
	Close() error
}

// State is the persisted checkpoint written after every cycle.
type State struct {
	CurrentCycle      int           `json:"current_cycle"`
	GeneratedAt       time.Time     `json:"generated_at"`
	Agents            []AgentRecord `json:"agents"`
	MissedCheckpoints []int         `json:"missed_checkpoints,omitempty"`
}

// AgentRecord is one account as persisted and served to viewers.
type AgentRecord struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	StartingCapital float64                `json:"starting_capital"`
	CashBalance     float64                `json:"cash_balance"`
	PortfolioValue  float64                `json:"portfolio_value"`
	TotalReturnPct  float64                `json:"total_return_pct"`
	RealizedPL      float64                `json:"realized_pl"`
	UnrealizedPL    float64                `json:"unrealized_pl"`
	TotalTrades     int                    `json:"total_trades"`
	Wins            int                    `json:"wins"`
	Losses          int                    `json:"losses"`
	WinRate         float64                `json:"win_rate"`
	Positions       []ledger.Position      `json:"positions"`
	TradeHistory    []ledger.Trade         `json:"trade_history"`
	CycleHistory    []ledger.CycleSnapshot `json:"cycle_history"`
}

// NewState captures accts as of cycle. Agents are ordered by portfolio
// value, highest first, ties broken by ID.
func NewState(cycle int, now time.Time, accts []*ledger.Account, missed []int) *State {
	s := &State{
		CurrentCycle:      cycle,
		GeneratedAt:       now,
		Agents:            make([]AgentRecord, 0, len(accts)),
		MissedCheckpoints: append([]int(nil), missed...),
	}
	for _, a := range accts {
		s.Agents = append(s.Agents, RecordFrom(a))
	}
	sort.SliceStable(s.Agents, func(i, j int) bool {
		ai, aj := s.Agents[i], s.Agents[j]
		if ai.PortfolioValue != aj.PortfolioValue {
			return ai.PortfolioValue > aj.PortfolioValue
		}
		return ai.ID < aj.ID
	})
	return s
}

// RecordFrom copies an account into its persisted form.
func RecordFrom(a *ledger.Account) AgentRecord {
	return AgentRecord{
		ID:              a.ID,
		Name:            a.Name,
		StartingCapital: a.StartingCapital,
		CashBalance:     a.Cash,
		PortfolioValue:  a.PortfolioValue(),
		TotalReturnPct:  a.TotalReturnPct(),
		RealizedPL:      a.RealizedPL,
		UnrealizedPL:    a.UnrealizedPL(),
		TotalTrades:     a.TotalTrades,
		Wins:            a.Wins,
		Losses:          a.Losses,
		WinRate:         a.WinRate(),
		Positions:       a.OpenPositions(),
		TradeHistory:    append([]ledger.Trade{}, a.Trades...),
		CycleHistory:    append([]ledger.CycleSnapshot{}, a.Cycles...),
	}
}

// Account rebuilds the live account a record was taken from.
func (r AgentRecord) Account() *ledger.Account {
	a := ledger.NewAccount(r.ID, r.Name, r.StartingCapital)
	a.Cash = r.CashBalance
	a.RealizedPL = r.RealizedPL
	a.TotalTrades = r.TotalTrades
	a.Wins = r.Wins
	a.Losses = r.Losses
	for _, p := range r.Positions {
		p := p
		a.Positions[p.Instrument] = &p
	}
	a.Trades = append([]ledger.Trade(nil), r.TradeHistory...)
	a.Cycles = append([]ledger.CycleSnapshot(nil), r.CycleHistory...)
	return a
}

// Agent finds a record by id.
func (s *State) Agent(id string) (AgentRecord, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentRecord{}, false
}

// Accounts rebuilds every account, in leaderboard order.
func (s *State) Accounts() []*ledger.Account {
	out := make([]*ledger.Account, 0, len(s.Agents))
	for _, r := range s.Agents {
		out = append(out, r.Account())
	}
	return out
}
