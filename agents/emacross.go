package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/indicators"
	"github.com/rustyeddy/arena/ledger"
)

const (
	DefaultFastPeriod     = 5
	DefaultSlowPeriod     = 12
	DefaultMaxPositionPct = 0.1
)

func init() {
	Register("emacross", func(cfg config.AgentConfig) (Agent, error) {
		e, err := NewEMACross(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}

// EMACross follows a fast/slow EMA cross of each instrument's mid price,
// one observation per cycle. An upward cross covers a short or opens a
// long, a downward cross sells a long or opens a short. When several
// instruments cross in the same cycle the first in name order wins.
type EMACross struct {
	base
	reasoning

	fast, slow int
	minSpread  float64
	sizePct    float64

	mu      sync.Mutex
	crosses map[string]*indicators.Cross
}

func NewEMACross(cfg config.AgentConfig) (*EMACross, error) {
	fast, slow := cfg.FastPeriod, cfg.SlowPeriod
	if fast == 0 {
		fast = DefaultFastPeriod
	}
	if slow == 0 {
		slow = DefaultSlowPeriod
	}
	if fast >= slow {
		return nil, fmt.Errorf("emacross: fast_period %d must be below slow_period %d", fast, slow)
	}
	size := cfg.MaxPositionPct
	if size == 0 {
		size = DefaultMaxPositionPct
	}
	return &EMACross{
		base:      base{cfg.ID, cfg.Name},
		fast:      fast,
		slow:      slow,
		minSpread: cfg.MinSpread,
		sizePct:   size,
		crosses:   make(map[string]*indicators.Cross),
	}, nil
}

type crossSignal struct {
	inst   string
	signal indicators.Signal
	why    string
}

func (e *EMACross) Decide(ctx context.Context, in DecisionInput) (*ledger.Intent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Every instrument is updated each cycle so no average skips a price.
	var signals []crossSignal
	for _, inst := range in.Quotes.Instruments() {
		mid := in.Quotes[inst].Mid()
		if !ledger.PositiveFinite(mid) {
			continue
		}
		x, ok := e.crosses[inst]
		if !ok {
			x = indicators.NewCross(e.fast, e.slow, e.minSpread)
			e.crosses[inst] = x
		}
		if sig, why := x.Update(mid); sig != indicators.Hold {
			signals = append(signals, crossSignal{inst, sig, why})
		}
	}

	if len(signals) == 0 {
		e.set("no cross, holding")
		return nil, nil
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].inst < signals[j].inst })

	for _, s := range signals {
		if intent := e.act(in, s); intent != nil {
			return intent, nil
		}
	}
	return nil, nil
}

func (e *EMACross) act(in DecisionInput, s crossSignal) *ledger.Intent {
	q := in.Quotes[s.inst]
	pos, held := in.Positions[s.inst]
	value := in.PortfolioValue * e.sizePct

	switch s.signal {
	case indicators.Up:
		if held && pos.Short() {
			return &ledger.Intent{Kind: ledger.Cover, Instrument: s.inst, Quantity: -pos.Quantity,
				Reasoning: e.set("%s on %s, covering short", s.why, s.inst)}
		}
		if held {
			e.set("%s on %s, already long", s.why, s.inst)
			return nil
		}
		if !ledger.PositiveFinite(q.Ask) || value > in.Cash {
			e.set("%s on %s, cannot afford entry", s.why, s.inst)
			return nil
		}
		return &ledger.Intent{Kind: ledger.Buy, Instrument: s.inst, Quantity: value / q.Ask,
			Reasoning: e.set("%s on %s, buying", s.why, s.inst)}

	case indicators.Down:
		if held && pos.Long() {
			return &ledger.Intent{Kind: ledger.Sell, Instrument: s.inst, Quantity: pos.Quantity,
				Reasoning: e.set("%s on %s, selling long", s.why, s.inst)}
		}
		if held {
			e.set("%s on %s, already short", s.why, s.inst)
			return nil
		}
		if !ledger.PositiveFinite(q.Bid) {
			e.set("%s on %s, no bid", s.why, s.inst)
			return nil
		}
		return &ledger.Intent{Kind: ledger.Short, Instrument: s.inst, Quantity: value / q.Bid,
			Reasoning: e.set("%s on %s, shorting", s.why, s.inst)}
	}
	return nil
}
