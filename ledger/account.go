package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrInvalidTrade         = errors.New("invalid trade")
	ErrNoPosition           = errors.New("no position")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrOppositePosition     = errors.New("opposite position open")
	ErrCycleGap             = errors.New("cycle gap")
)

// Account is one agent's portfolio. It has a single writer: the cycle
// driver. Everyone else works on a Clone.
type Account struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	StartingCapital float64              `json:"starting_capital"`
	Cash            float64              `json:"cash_balance"`
	RealizedPL      float64              `json:"realized_pl"`
	Positions       map[string]*Position `json:"positions"`
	Trades          []Trade              `json:"trade_history"`
	TotalTrades     int                  `json:"total_trades"`
	Wins            int                  `json:"wins"`
	Losses          int                  `json:"losses"`
	Cycles          []CycleSnapshot      `json:"cycle_history"`
}

func NewAccount(id, name string, startingCapital float64) *Account {
	return &Account{
		ID:              id,
		Name:            name,
		StartingCapital: startingCapital,
		Cash:            startingCapital,
		Positions:       make(map[string]*Position),
	}
}

// Position returns the open position in instrument, if any.
func (a *Account) Position(instrument string) (*Position, bool) {
	p, ok := a.Positions[instrument]
	return p, ok
}

// OpenPositions returns copies of the open positions sorted by instrument.
func (a *Account) OpenPositions() []Position {
	out := make([]Position, 0, len(a.Positions))
	for _, p := range a.Positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// PortfolioValue is cash plus the signed value of every position.
func (a *Account) PortfolioValue() float64 {
	v := a.Cash
	for _, p := range a.Positions {
		v += p.Value()
	}
	return v
}

func (a *Account) UnrealizedPL() float64 {
	var u float64
	for _, p := range a.Positions {
		u += p.UnrealizedPL
	}
	return u
}

func (a *Account) TotalReturnPct() float64 {
	if a.StartingCapital == 0 {
		return 0
	}
	return (a.PortfolioValue() - a.StartingCapital) / a.StartingCapital * 100
}

// WinRate is profitable closes over filled trades, in percent.
func (a *Account) WinRate() float64 {
	if a.TotalTrades == 0 {
		return 0
	}
	return float64(a.Wins) / float64(a.TotalTrades) * 100
}

// LastCycle is the cycle number of the newest snapshot, or 0.
func (a *Account) LastCycle() int {
	if len(a.Cycles) == 0 {
		return 0
	}
	return a.Cycles[len(a.Cycles)-1].Cycle
}

// Record appends t to the trade history, applying it first when it is
// filled. A filled trade that fails ApplyFill is neither applied nor
// recorded.
func (a *Account) Record(t Trade) error {
	if t.AgentID != "" && t.AgentID != a.ID {
		return fmt.Errorf("record %s: trade for agent %q: %w", a.ID, t.AgentID, ErrInvalidTrade)
	}
	if t.Filled() {
		if err := ApplyFill(a, &t); err != nil {
			return err
		}
	}
	a.Trades = append(a.Trades, t)
	return nil
}

// ApplyFill mutates a for a filled trade and sets t.RealizedPL for closing
// trades. It re-checks the same preconditions as the exchange and leaves a
// untouched when any of them fails.
func ApplyFill(a *Account, t *Trade) error {
	if err := checkFill(t); err != nil {
		return err
	}
	q, price := t.Quantity, t.Price
	value := q * price
	pos, held := a.Positions[t.Instrument]

	switch t.Kind {
	case Buy:
		if held && pos.Short() {
			return fmt.Errorf("buy %s: %w", t.Instrument, ErrOppositePosition)
		}
		if a.Cash-value < -Epsilon {
			return fmt.Errorf("buy %s: need %.2f have %.2f: %w", t.Instrument, value, a.Cash, ErrInsufficientFunds)
		}
		a.Cash = clampCash(a.Cash - value)
		a.grow(t.Instrument, q, price)

	case Short:
		if held && pos.Long() {
			return fmt.Errorf("short %s: %w", t.Instrument, ErrOppositePosition)
		}
		a.Cash += value
		a.grow(t.Instrument, -q, price)

	case Sell:
		if !held || !pos.Long() {
			return fmt.Errorf("sell %s: %w", t.Instrument, ErrNoPosition)
		}
		if pos.Quantity < q-Epsilon {
			return fmt.Errorf("sell %s: want %g hold %g: %w", t.Instrument, q, pos.Quantity, ErrInsufficientHoldings)
		}
		a.Cash += value
		t.RealizedPL = (price - pos.EntryPrice) * q
		a.reduce(pos, -q)
		a.close(t.RealizedPL)

	case Cover:
		if !held || !pos.Short() {
			return fmt.Errorf("cover %s: %w", t.Instrument, ErrNoPosition)
		}
		if -pos.Quantity < q-Epsilon {
			return fmt.Errorf("cover %s: want %g short %g: %w", t.Instrument, q, -pos.Quantity, ErrInsufficientHoldings)
		}
		if a.Cash-value < -Epsilon {
			return fmt.Errorf("cover %s: need %.2f have %.2f: %w", t.Instrument, value, a.Cash, ErrInsufficientFunds)
		}
		a.Cash = clampCash(a.Cash - value)
		t.RealizedPL = (pos.EntryPrice - price) * q
		a.reduce(pos, q)
		a.close(t.RealizedPL)
	}

	a.TotalTrades++
	return nil
}

func checkFill(t *Trade) error {
	switch {
	case !t.Filled():
		return fmt.Errorf("apply %s: status %s: %w", t.ID, t.Status, ErrInvalidTrade)
	case !t.Kind.Valid():
		return fmt.Errorf("apply %s: kind %q: %w", t.ID, t.Kind, ErrInvalidTrade)
	case !PositiveFinite(t.Quantity) || t.Quantity < Epsilon:
		return fmt.Errorf("apply %s: quantity %g: %w", t.ID, t.Quantity, ErrInvalidTrade)
	case !PositiveFinite(t.Price):
		return fmt.Errorf("apply %s: price %g: %w", t.ID, t.Price, ErrInvalidTrade)
	case !PositiveFinite(t.Quantity * t.Price):
		return fmt.Errorf("apply %s: value %g: %w", t.ID, t.Quantity*t.Price, ErrInvalidTrade)
	}
	return nil
}

func (a *Account) grow(instrument string, q, price float64) {
	if a.Positions == nil {
		a.Positions = make(map[string]*Position)
	}
	pos, ok := a.Positions[instrument]
	if !ok {
		pos = &Position{Instrument: instrument}
		a.Positions[instrument] = pos
	}
	pos.add(q, price)
}

func (a *Account) reduce(pos *Position, q float64) {
	pos.Quantity += q
	if dust(pos.Quantity) {
		delete(a.Positions, pos.Instrument)
		return
	}
	pos.mark(pos.MarkPrice)
}

func (a *Account) close(realized float64) {
	a.RealizedPL += realized
	switch {
	case realized > 0:
		a.Wins++
	case realized < 0:
		a.Losses++
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.Positions = make(map[string]*Position, len(a.Positions))
	for k, p := range a.Positions {
		cp := *p
		c.Positions[k] = &cp
	}
	c.Trades = append([]Trade(nil), a.Trades...)
	c.Cycles = append([]CycleSnapshot(nil), a.Cycles...)
	return &c
}

// ReasonFor maps a ledger error onto the rejection reason an exchange would
// have given for it.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, ErrInsufficientHoldings), errors.Is(err, ErrNoPosition):
		return ReasonInsufficientHoldings
	case errors.Is(err, ErrOppositePosition):
		return ReasonOppositePosition
	}
	return ReasonInvalidQuantity
}

// PositiveFinite reports whether f is a usable quantity or price.
func PositiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func clampCash(c float64) float64 {
	if c < 0 {
		return 0
	}
	return c
}
