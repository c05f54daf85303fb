// Package arena drives the trading competition: fixed-size cycles in which
// every agent sees the same quotes, decides concurrently, and has its intent
// executed against its own account.
package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/arena/agents"
	"github.com/rustyeddy/arena/exchange"
	"github.com/rustyeddy/arena/journal"
	"github.com/rustyeddy/arena/ledger"
	"github.com/rustyeddy/arena/market"
)

// Phase names a step of a cycle.
type Phase string

const (
	PhaseQuoteFetch  Phase = "QUOTE_FETCH"
	PhaseDecisions   Phase = "AGENT_DECISIONS"
	PhaseExecution   Phase = "EXECUTION"
	PhaseLedgerApply Phase = "LEDGER_APPLY"
	PhaseRevaluation Phase = "REVALUATION"
	PhaseSnapshot    Phase = "SNAPSHOT"
	PhasePersist     Phase = "PERSIST"
	PhaseComplete    Phase = "COMPLETE"
)

// ErrPersist wraps a failed checkpoint returned from Run or RunCycle.
var ErrPersist = errors.New("persist state")

// Observer is called with every state the arena produces, after it has been
// persisted or the failure recorded. It runs on the cycle driver and must
// not block.
type Observer func(*journal.State)

type Option func(*Arena)

func WithLogger(l *zap.Logger) Option {
	return func(a *Arena) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock replaces time.Now for trade and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Arena) {
		if now != nil {
			a.now = now
			a.ex.Clock = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(a *Arena) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

// Arena owns every account. The cycle driver is the only writer; readers
// go through State or Leaderboard.
type Arena struct {
	cfg    Config
	src    market.Source
	agents []agents.Agent
	store  journal.Store
	ex     *exchange.Exchange
	log    *zap.Logger
	now    func() time.Time

	observers []Observer

	mu       sync.RWMutex
	accounts map[string]*ledger.Account
	cycle    int
	missed   []int
}

func New(cfg Config, src market.Source, agts []agents.Agent, store journal.Store, opts ...Option) (*Arena, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("arena: quote source is required")
	}
	if store == nil {
		return nil, fmt.Errorf("arena: store is required")
	}
	if len(agts) == 0 {
		return nil, fmt.Errorf("arena: at least one agent is required")
	}

	a := &Arena{
		cfg:      cfg,
		src:      src,
		agents:   append([]agents.Agent(nil), agts...),
		store:    store,
		ex:       exchange.New(),
		log:      zap.NewNop(),
		now:      time.Now,
		accounts: make(map[string]*ledger.Account, len(agts)),
	}
	for _, ag := range agts {
		if ag == nil {
			return nil, fmt.Errorf("arena: nil agent")
		}
		if _, dup := a.accounts[ag.ID()]; dup {
			return nil, fmt.Errorf("arena: duplicate agent id %q", ag.ID())
		}
		a.accounts[ag.ID()] = ledger.NewAccount(ag.ID(), ag.Name(), cfg.StartingCapital)
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Restore replaces every account with its persisted counterpart so the run
// continues after state.CurrentCycle. The persisted agents must match the
// configured ones exactly.
func (a *Arena) Restore(state *journal.State) error {
	if state == nil {
		return errors.New("restore: nil state")
	}
	if len(state.Agents) != len(a.agents) {
		return fmt.Errorf("restore: state has %d agents, arena has %d", len(state.Agents), len(a.agents))
	}

	restored := make(map[string]*ledger.Account, len(state.Agents))
	for _, rec := range state.Agents {
		if _, ok := a.accounts[rec.ID]; !ok {
			return fmt.Errorf("restore: agent %q is not configured", rec.ID)
		}
		acct := rec.Account()
		if acct.LastCycle() != state.CurrentCycle {
			return fmt.Errorf("restore: agent %q has history to cycle %d, state is at %d: %w",
				rec.ID, acct.LastCycle(), state.CurrentCycle, ledger.ErrCycleGap)
		}
		restored[rec.ID] = acct
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts = restored
	a.cycle = state.CurrentCycle
	a.missed = append([]int(nil), state.MissedCheckpoints...)
	return nil
}

// Cycle is the number of the last completed cycle.
func (a *Arena) Cycle() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cycle
}

// Done reports whether the configured number of cycles has run.
func (a *Arena) Done() bool { return a.Cycle() >= a.cfg.Cycles }

// State is a point-in-time copy of every account.
func (a *Arena) State() *journal.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stateLocked()
}

// Leaderboard returns the accounts by portfolio value, highest first.
func (a *Arena) Leaderboard() []journal.AgentRecord {
	return a.State().Agents
}

func (a *Arena) stateLocked() *journal.State {
	accts := make([]*ledger.Account, 0, len(a.accounts))
	for _, ag := range a.agents {
		accts = append(accts, a.accounts[ag.ID()])
	}
	return journal.NewState(a.cycle, a.now(), accts, a.missed)
}

// Run drives cycles until the configured count is reached or ctx is done.
// Cancellation is only observed between cycles; a cycle that has started
// always completes and persists. Run returns ctx.Err() when stopped early.
func (a *Arena) Run(ctx context.Context) error {
	a.log.Info("arena starting",
		zap.Int("from_cycle", a.Cycle()+1),
		zap.Int("cycles", a.cfg.Cycles),
		zap.Int("agents", len(a.agents)),
		zap.Duration("interval", a.cfg.Interval),
	)

	for !a.Done() {
		if err := ctx.Err(); err != nil {
			a.log.Info("arena stopped", zap.Int("cycle", a.Cycle()), zap.Error(err))
			return err
		}

		if _, err := a.RunCycle(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		if a.Done() || a.cfg.Interval <= 0 {
			continue
		}

		timer := time.NewTimer(a.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	a.log.Info("arena complete", zap.String("phase", string(PhaseComplete)), zap.Int("cycle", a.Cycle()))
	return nil
}

// RunCycle runs exactly one cycle and returns the state it produced. A
// persist failure is returned wrapped in ErrPersist unless the arena is
// configured to continue; the cycle itself is complete either way.
func (a *Arena) RunCycle(ctx context.Context) (*journal.State, error) {
	n := a.Cycle() + 1
	log := a.log.With(zap.Int("cycle", n))
	started := a.now()

	quotes := a.fetchQuotes(ctx, log)
	a.ex.SetQuotes(quotes)

	intents := a.decide(ctx, n, quotes, log)

	a.mu.Lock()
	a.execute(intents, log)
	state, err := a.settle(n, quotes, log)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	perr := a.persist(ctx, state, log)
	for _, o := range a.observers {
		o(state)
	}
	observeCycle(state, a.now().Sub(started))

	log.Info("cycle complete",
		zap.Int("agents", len(state.Agents)),
		zap.String("leader", leader(state)),
		zap.Duration("elapsed", a.now().Sub(started)),
	)

	if perr != nil && !a.cfg.ContinueOnPersistError {
		return state, perr
	}
	return state, nil
}

func (a *Arena) fetchQuotes(ctx context.Context, log *zap.Logger) market.QuoteSet {
	defer observePhase(PhaseQuoteFetch, time.Now())

	qctx, cancel := context.WithTimeout(ctx, a.cfg.QuoteTimeout)
	defer cancel()

	qs, err := a.src.Quotes(qctx, a.cfg.Instruments)
	if err != nil {
		log.Warn("quote fetch failed, cycle continues without quotes",
			zap.String("phase", string(PhaseQuoteFetch)), zap.Error(err))
		countQuoteFailure()
		qs = market.QuoteSet{}
	}

	// Keep only configured instruments so every agent sees the same set.
	out := make(market.QuoteSet, len(a.cfg.Instruments))
	for _, inst := range a.cfg.Instruments {
		q, ok := qs[inst]
		if !ok {
			countMissingQuote(inst)
			log.Debug("no quote", zap.String("instrument", inst))
			continue
		}
		out[inst] = q
	}
	return out
}

func (a *Arena) execute(intents []*ledger.Intent, log *zap.Logger) {
	defer observePhase(PhaseExecution, time.Now())

	for i, ag := range a.agents {
		in := intents[i]
		if in == nil {
			continue
		}
		acct := a.accounts[ag.ID()]

		t := a.ex.Execute(acct, *in)
		if err := acct.Record(t); err != nil {
			// The exchange accepted what the ledger would not. Keep the
			// attempt as a rejection so the history stays complete.
			log.Warn("ledger refused fill",
				zap.String("phase", string(PhaseLedgerApply)),
				zap.String("agent", ag.ID()),
				zap.String("trade", t.ID),
				zap.Error(err),
			)
			t.Status = ledger.Rejected
			t.Reason = ledger.ReasonFor(err)
			t.RealizedPL = 0
			_ = acct.Record(t)
		}
		countTrade(t)

		fields := []zap.Field{
			zap.String("agent", ag.ID()),
			zap.String("instrument", t.Instrument),
			zap.String("kind", string(t.Kind)),
			zap.Float64("quantity", t.Quantity),
			zap.Float64("price", t.Price),
		}
		if t.Filled() {
			log.Info("trade filled", fields...)
		} else {
			log.Info("trade rejected", append(fields, zap.String("reason", string(t.Reason)))...)
		}
	}
}

// settle revalues and snapshots every account, then advances the cycle.
func (a *Arena) settle(n int, quotes market.QuoteSet, log *zap.Logger) (*journal.State, error) {
	start := time.Now()
	for _, acct := range a.accounts {
		ledger.Revalue(acct, quotes)
	}
	observePhase(PhaseRevaluation, start)

	start = time.Now()
	now := a.now()
	for _, ag := range a.agents {
		acct := a.accounts[ag.ID()]
		if err := acct.AppendSnapshot(ledger.Snapshot(acct, n, now)); err != nil {
			log.Error("snapshot rejected", zap.String("agent", ag.ID()), zap.Error(err))
			return nil, err
		}
	}
	observePhase(PhaseSnapshot, start)

	a.cycle = n
	return a.stateLocked(), nil
}

func (a *Arena) persist(ctx context.Context, state *journal.State, log *zap.Logger) error {
	defer observePhase(PhasePersist, time.Now())

	if err := a.store.Save(ctx, state); err != nil {
		a.mu.Lock()
		a.missed = append(a.missed, state.CurrentCycle)
		a.mu.Unlock()
		countPersistFailure()
		log.Error("checkpoint failed",
			zap.String("phase", string(PhasePersist)),
			zap.Bool("continue", a.cfg.ContinueOnPersistError),
			zap.Error(err),
		)
		return fmt.Errorf("cycle %d: %w: %w", state.CurrentCycle, ErrPersist, err)
	}
	return nil
}

func leader(s *journal.State) string {
	if len(s.Agents) == 0 {
		return ""
	}
	return s.Agents[0].ID
}
