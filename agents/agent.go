package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/ledger"
	"github.com/rustyeddy/arena/market"
)

// DecisionInput is everything an agent sees in one cycle. Quotes is shared
// with other agents and must not be modified; Positions is the agent's own
// copy.
type DecisionInput struct {
	Cycle          int
	Quotes         market.QuoteSet
	PortfolioValue float64
	Cash           float64
	Positions      map[string]ledger.Position
}

// Agent decides at most one trade per cycle. A nil intent means hold.
type Agent interface {
	ID() string
	Name() string
	Decide(ctx context.Context, in DecisionInput) (*ledger.Intent, error)
}

// Reasoner is implemented by agents that can explain their last decision,
// including decisions to hold.
type Reasoner interface {
	LastReasoning() string
}

// Logged is implemented by agents that log their own work.
type Logged interface {
	SetLogger(log *zap.Logger)
}

// UseLogger hands log to every agent that implements Logged.
func UseLogger(agts []Agent, log *zap.Logger) {
	for _, a := range agts {
		if l, ok := a.(Logged); ok {
			l.SetLogger(log)
		}
	}
}

// Factory builds an agent from its configuration.
type Factory func(cfg config.AgentConfig) (Agent, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register makes a kind available to Build. Registering the same kind twice
// panics.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	kind = normalize(kind)
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("agents: Register called twice for kind %q", kind))
	}
	registry[kind] = f
}

// Kinds lists the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds a single agent.
func New(cfg config.AgentConfig) (Agent, error) {
	mu.RLock()
	f, ok := registry[normalize(cfg.Kind)]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown agent kind %q (supported: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}
	return f(cfg)
}

// Build constructs every configured agent, failing on the first unknown
// kind, duplicate id or constructor error.
func Build(cfgs []config.AgentConfig) ([]Agent, error) {
	out := make([]Agent, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for i, c := range cfgs {
		if c.ID == "" {
			return nil, fmt.Errorf("agent %d: id is required", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("agent %q: duplicate id", c.ID)
		}
		seen[c.ID] = true

		a, err := New(c)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", c.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func normalize(kind string) string { return strings.ToLower(strings.TrimSpace(kind)) }

type base struct {
	id   string
	name string
}

func (b base) ID() string   { return b.id }
func (b base) Name() string { return b.name }

// reasoning is a concurrency-safe holder for LastReasoning.
type reasoning struct {
	mu   sync.Mutex
	last string
}

func (r *reasoning) set(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.last = s
	r.mu.Unlock()
	return s
}

func (r *reasoning) LastReasoning() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
