package agents

import (
	"context"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/ledger"
)

func init() {
	Register("hold", func(cfg config.AgentConfig) (Agent, error) {
		return &Hold{base: base{cfg.ID, cfg.Name}}, nil
	})
	Register("buyhold", func(cfg config.AgentConfig) (Agent, error) {
		return &BuyHold{base: base{cfg.ID, cfg.Name}}, nil
	})
}

// Hold never trades. It is the cash benchmark.
type Hold struct {
	base
}

func (h *Hold) Decide(ctx context.Context, in DecisionInput) (*ledger.Intent, error) {
	return nil, nil
}

// BuyHold spends its cash evenly across every quoted instrument, one
// instrument per cycle, and then holds.
type BuyHold struct {
	base
	reasoning
}

func (b *BuyHold) Decide(ctx context.Context, in DecisionInput) (*ledger.Intent, error) {
	var todo []string
	for _, inst := range in.Quotes.Instruments() {
		if _, held := in.Positions[inst]; !held {
			todo = append(todo, inst)
		}
	}
	if len(todo) == 0 {
		b.set("fully allocated")
		return nil, nil
	}

	inst := todo[0]
	q := in.Quotes[inst]
	if !ledger.PositiveFinite(q.Ask) || in.Cash <= 0 {
		b.set("cannot price %s", inst)
		return nil, nil
	}

	alloc := in.Cash / float64(len(todo))
	return &ledger.Intent{
		Kind:       ledger.Buy,
		Instrument: inst,
		Quantity:   alloc / q.Ask,
		Reasoning:  b.set("allocating %.2f to %s", alloc, inst),
	}, nil
}
