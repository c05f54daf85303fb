package agents

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/ledger"
)

const (
	DefaultTradeProbability = 0.3

	momentumThreshold = 2.0  // 24h change, percent
	takeProfitPct     = 5.0  // unrealized return that closes a position
	stopLossPct       = -3.0 // unrealized return that cuts a position
)

func init() {
	Register("momentum", func(cfg config.AgentConfig) (Agent, error) {
		return NewMomentum(cfg), nil
	})
}

// Momentum is a rule-based agent. On a trading turn it picks one quoted
// instrument at random, manages an open position there (take profit above
// 5%, stop out below -3%), and otherwise follows the 24h change: buy on
// strength, short or buy the dip on weakness.
type Momentum struct {
	base
	reasoning

	prob float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMomentum(cfg config.AgentConfig) *Momentum {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	prob := cfg.TradeProbability
	if prob == 0 {
		prob = DefaultTradeProbability
	}
	return &Momentum{
		base: base{cfg.ID, cfg.Name},
		prob: prob,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (m *Momentum) uniform(lo, hi float64) float64 { return lo + m.rng.Float64()*(hi-lo) }

func (m *Momentum) Decide(ctx context.Context, in DecisionInput) (*ledger.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rng.Float64() > m.prob {
		m.set("no strong signal, holding")
		return nil, nil
	}

	instruments := in.Quotes.Instruments()
	if len(instruments) == 0 {
		m.set("no quotes")
		return nil, nil
	}
	inst := instruments[m.rng.Intn(len(instruments))]
	q := in.Quotes[inst]
	pos, held := in.Positions[inst]

	if held && m.rng.Float64() > 0.5 {
		if intent := m.manage(inst, pos, q.Bid, q.Ask); intent != nil {
			return intent, nil
		}
	}

	change := q.Change24hPct
	switch {
	case change > momentumThreshold:
		if held && pos.Short() {
			m.set("positive momentum on %s but short, waiting", inst)
			return nil, nil
		}
		return m.buy(in, inst, q.Ask, m.uniform(0.02, 0.05),
			"positive momentum %.2f%% on %s", change, inst), nil

	case change < -momentumThreshold:
		if m.rng.Float64() > 0.6 {
			if held && pos.Long() {
				m.set("negative momentum on %s but long, waiting", inst)
				return nil, nil
			}
			if !ledger.PositiveFinite(q.Bid) {
				m.set("no bid for %s", inst)
				return nil, nil
			}
			value := in.PortfolioValue * m.uniform(0.02, 0.04)
			return &ledger.Intent{
				Kind:       ledger.Short,
				Instrument: inst,
				Quantity:   value / q.Bid,
				Reasoning:  m.set("negative momentum %.2f%% on %s, shorting", change, inst),
			}, nil
		}
		if m.rng.Float64() > 0.5 && !(held && pos.Short()) {
			return m.buy(in, inst, q.Ask, m.uniform(0.01, 0.03),
				"dip of %.2f%% on %s, buying", change, inst), nil
		}
		m.set("negative momentum on %s, avoiding", inst)
		return nil, nil
	}

	m.set("no momentum signal on %s", inst)
	return nil, nil
}

func (m *Momentum) buy(in DecisionInput, inst string, ask, frac float64, format string, args ...any) *ledger.Intent {
	if !ledger.PositiveFinite(ask) {
		m.set("no ask for %s", inst)
		return nil
	}
	value := in.PortfolioValue * frac
	if value > in.Cash {
		m.set("insufficient cash to buy %s", inst)
		return nil
	}
	return &ledger.Intent{
		Kind:       ledger.Buy,
		Instrument: inst,
		Quantity:   value / ask,
		Reasoning:  m.set(format, args...),
	}
}

// manage returns a closing intent when pos has crossed the take-profit or
// stop-loss level, valued at the price it would close at.
func (m *Momentum) manage(inst string, pos ledger.Position, bid, ask float64) *ledger.Intent {
	if pos.EntryPrice <= 0 {
		return nil
	}
	if pos.Long() {
		if !ledger.PositiveFinite(bid) {
			return nil
		}
		pnl := (bid - pos.EntryPrice) / pos.EntryPrice * 100
		switch {
		case pnl > takeProfitPct:
			return &ledger.Intent{Kind: ledger.Sell, Instrument: inst, Quantity: pos.Quantity * m.uniform(0.5, 1.0),
				Reasoning: m.set("taking profit on %s at %.2f%%", inst, pnl)}
		case pnl < stopLossPct:
			return &ledger.Intent{Kind: ledger.Sell, Instrument: inst, Quantity: pos.Quantity,
				Reasoning: m.set("cutting loss on %s at %.2f%%", inst, pnl)}
		}
		return nil
	}

	if !ledger.PositiveFinite(ask) {
		return nil
	}
	size := -pos.Quantity
	pnl := (pos.EntryPrice - ask) / pos.EntryPrice * 100
	switch {
	case pnl > takeProfitPct:
		return &ledger.Intent{Kind: ledger.Cover, Instrument: inst, Quantity: size * m.uniform(0.5, 1.0),
			Reasoning: m.set("taking short profit on %s at %.2f%%", inst, pnl)}
	case pnl < stopLossPct:
		return &ledger.Intent{Kind: ledger.Cover, Instrument: inst, Quantity: size,
			Reasoning: m.set("covering losing short on %s at %.2f%%", inst, pnl)}
	}
	return nil
}
