package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/arena/agents"
	"github.com/rustyeddy/arena/ledger"
	"github.com/rustyeddy/arena/market"
)

var errPanic = errors.New("agent panicked")

// decide asks every agent for its intent concurrently. The result is
// indexed like a.agents; a failed or holding agent leaves a nil entry.
func (a *Arena) decide(ctx context.Context, n int, quotes market.QuoteSet, log *zap.Logger) []*ledger.Intent {
	defer observePhase(PhaseDecisions, time.Now())

	inputs := make([]agents.DecisionInput, len(a.agents))
	a.mu.RLock()
	for i, ag := range a.agents {
		inputs[i] = decisionInput(n, quotes, a.accounts[ag.ID()])
	}
	a.mu.RUnlock()

	out := make([]*ledger.Intent, len(a.agents))

	var g errgroup.Group
	if a.cfg.MaxConcurrency > 0 {
		g.SetLimit(a.cfg.MaxConcurrency)
	}
	for i, ag := range a.agents {
		i, ag := i, ag
		g.Go(func() error {
			alog := log.With(zap.String("agent", ag.ID()))
			start := time.Now()
			in, err := a.decideOne(ctx, ag, inputs[i])
			observeDecision(ag.ID(), time.Since(start))

			if err != nil {
				cause := failureCause(err)
				countAgentFailure(ag.ID(), cause)
				alog.Warn("agent decision failed, holding",
					zap.String("phase", string(PhaseDecisions)),
					zap.String("cause", cause),
					zap.Error(err),
				)
				return nil
			}
			if in == nil {
				alog.Debug("hold", zap.String("reasoning", lastReasoning(ag)))
				return nil
			}
			if in.Reasoning == "" {
				in.Reasoning = lastReasoning(ag)
			}
			alog.Debug("intent", zap.Stringer("intent", in), zap.String("reasoning", in.Reasoning))
			out[i] = in
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// decideOne bounds a single Decide call by the decision timeout and turns
// a panic into an error. An agent that ignores its context is abandoned;
// its late answer is discarded.
func (a *Arena) decideOne(ctx context.Context, ag agents.Agent, in agents.DecisionInput) (*ledger.Intent, error) {
	dctx, cancel := context.WithTimeout(ctx, a.cfg.DecisionTimeout)
	defer cancel()

	type result struct {
		intent *ledger.Intent
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", errPanic, r)}
			}
		}()
		intent, err := ag.Decide(dctx, in)
		done <- result{intent: intent, err: err}
	}()

	select {
	case r := <-done:
		if r.intent != nil {
			cp := *r.intent
			return &cp, r.err
		}
		return nil, r.err
	case <-dctx.Done():
		return nil, fmt.Errorf("decision: %w", dctx.Err())
	}
}

func decisionInput(n int, quotes market.QuoteSet, acct *ledger.Account) agents.DecisionInput {
	positions := make(map[string]ledger.Position, len(acct.Positions))
	for inst, p := range acct.Positions {
		positions[inst] = *p
	}
	return agents.DecisionInput{
		Cycle:          n,
		Quotes:         quotes,
		PortfolioValue: acct.PortfolioValue(),
		Cash:           acct.Cash,
		Positions:      positions,
	}
}

func lastReasoning(ag agents.Agent) string {
	if r, ok := ag.(agents.Reasoner); ok {
		return r.LastReasoning()
	}
	return ""
}

func failureCause(err error) string {
	switch {
	case errors.Is(err, errPanic):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}
