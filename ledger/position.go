package ledger

import "math"

// Epsilon is the quantity below which a position is treated as closed.
const Epsilon = 1e-9

// Position is a signed holding in one instrument: positive is long, negative
// is short. A zero position is never stored.
type Position struct {
	Instrument   string  `json:"instrument"`
	Quantity     float64 `json:"quantity"`
	EntryPrice   float64 `json:"entry_price"`
	MarkPrice    float64 `json:"current_price"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

func (p *Position) Long() bool  { return p.Quantity > 0 }
func (p *Position) Short() bool { return p.Quantity < 0 }

// Side is "long" or "short".
func (p *Position) Side() string {
	if p.Short() {
		return "short"
	}
	return "long"
}

// Value is the signed market value; a short counts as a liability.
func (p *Position) Value() float64 { return p.Quantity * p.MarkPrice }

// ReturnPct is the unrealized return relative to the entry cost.
func (p *Position) ReturnPct() float64 {
	cost := math.Abs(p.Quantity) * p.EntryPrice
	if cost == 0 {
		return 0
	}
	return p.UnrealizedPL / cost * 100
}

func (p *Position) mark(price float64) {
	p.MarkPrice = price
	p.UnrealizedPL = (price - p.EntryPrice) * p.Quantity
}

// add grows the position by q units (q carries the sign of the side) at
// price, re-weighting the entry price on magnitude.
func (p *Position) add(q, price float64) {
	oldAbs := math.Abs(p.Quantity)
	addAbs := math.Abs(q)
	p.EntryPrice = (oldAbs*p.EntryPrice + addAbs*price) / (oldAbs + addAbs)
	p.Quantity += q
	p.mark(price)
}

func dust(q float64) bool { return math.Abs(q) < Epsilon }
