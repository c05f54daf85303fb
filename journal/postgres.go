package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresSchema mirrors Schema. Money and quantities are NUMERIC.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	kind TEXT NOT NULL,
	quantity NUMERIC NOT NULL,
	price NUMERIC NOT NULL,
	value NUMERIC NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	realized_pl NUMERIC NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_agent_time ON trades(agent_id, time);

CREATE TABLE IF NOT EXISTS cycle_snapshots (
	agent_id TEXT NOT NULL,
	cycle INTEGER NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	portfolio_value NUMERIC NOT NULL,
	cash NUMERIC NOT NULL,
	total_return_pct NUMERIC NOT NULL,
	total_trades INTEGER NOT NULL,
	win_rate NUMERIC NOT NULL,
	open_positions INTEGER NOT NULL,
	realized_pl NUMERIC NOT NULL,
	unrealized_pl NUMERIC NOT NULL,
	PRIMARY KEY (agent_id, cycle)
);

CREATE TABLE IF NOT EXISTS arena_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	current_cycle INTEGER NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	body JSONB NOT NULL
);
`

// Postgres is the SQLite journal on a shared PostgreSQL server, for runs
// whose history is read by other services.
type Postgres struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	saved map[string]savedCounts
}

// NewPostgres connects to url and creates the schema.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &Postgres{pool: pool, saved: make(map[string]savedCounts)}, nil
}

func num(f float64) string { return decimal.NewFromFloat(f).String() }

// Save has the same semantics as SQLite.Save.
func (p *Postgres) Save(ctx context.Context, s *State) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	next := make(map[string]savedCounts, len(s.Agents))
	for _, a := range s.Agents {
		done := p.saved[a.ID]
		if done.trades > len(a.TradeHistory) || done.cycles > len(a.CycleHistory) {
			done = savedCounts{}
		}
		for _, t := range a.TradeHistory[done.trades:] {
			if _, err := tx.Exec(ctx, `
				INSERT INTO trades
				(trade_id, agent_id, instrument, kind, quantity, price, value, time, status, reason, reasoning, realized_pl)
				VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9, $10, $11, $12::NUMERIC)
				ON CONFLICT (trade_id) DO NOTHING`,
				t.ID, a.ID, t.Instrument, string(t.Kind), num(t.Quantity), num(t.Price), num(t.Value),
				t.Time, string(t.Status), string(t.Reason), t.Reasoning, num(t.RealizedPL),
			); err != nil {
				return fmt.Errorf("insert trade %s: %w", t.ID, err)
			}
		}
		for _, c := range a.CycleHistory[done.cycles:] {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cycle_snapshots
				(agent_id, cycle, time, portfolio_value, cash, total_return_pct, total_trades, win_rate, open_positions, realized_pl, unrealized_pl)
				VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8::NUMERIC, $9, $10::NUMERIC, $11::NUMERIC)
				ON CONFLICT (agent_id, cycle) DO NOTHING`,
				a.ID, c.Cycle, c.Time, num(c.PortfolioValue), num(c.Cash), num(c.TotalReturnPct),
				c.TotalTrades, num(c.WinRate), c.OpenPositions, num(c.RealizedPL), num(c.UnrealizedPL),
			); err != nil {
				return fmt.Errorf("insert snapshot %s/%d: %w", a.ID, c.Cycle, err)
			}
		}
		next[a.ID] = savedCounts{trades: len(a.TradeHistory), cycles: len(a.CycleHistory)}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO arena_state (id, current_cycle, generated_at, body)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET current_cycle = EXCLUDED.current_cycle, generated_at = EXCLUDED.generated_at, body = EXCLUDED.body`,
		s.CurrentCycle, s.GeneratedAt, string(body)); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.saved = next
	return nil
}

func (p *Postgres) Load(ctx context.Context) (*State, error) {
	var body string
	err := p.pool.QueryRow(ctx, `SELECT body::TEXT FROM arena_state WHERE id = 1`).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}
	s := &State{}
	if err := json.Unmarshal([]byte(body), s); err != nil {
		return nil, fmt.Errorf("parse stored state: %w", err)
	}
	return s, nil
}

// PortfolioValues returns an agent's portfolio value per cycle as exact
// decimals, in cycle order.
func (p *Postgres) PortfolioValues(ctx context.Context, agentID string) ([]decimal.Decimal, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT portfolio_value::TEXT FROM cycle_snapshots
		WHERE agent_id = $1 ORDER BY cycle ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []decimal.Decimal
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse portfolio value %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
