package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite keeps an append-only audit of trades and cycle snapshots next to
// the latest full state. Each Save is a single transaction.
type SQLite struct {
	db *sql.DB

	mu    sync.Mutex
	saved map[string]savedCounts
}

type savedCounts struct {
	trades, cycles int
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, saved: make(map[string]savedCounts)}, nil
}

// Save inserts the trades and snapshots not yet written and replaces the
// stored state. Rows already present are ignored, so saving the same
// state twice is harmless.
func (j *SQLite) Save(ctx context.Context, s *State) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO trades
		(trade_id, agent_id, instrument, kind, quantity, price, value, time, status, reason, reasoning, realized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tradeStmt.Close()

	snapStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO cycle_snapshots
		(agent_id, cycle, time, portfolio_value, cash, total_return_pct, total_trades, win_rate, open_positions, realized_pl, unrealized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer snapStmt.Close()

	next := make(map[string]savedCounts, len(s.Agents))
	for _, a := range s.Agents {
		done := j.saved[a.ID]
		if done.trades > len(a.TradeHistory) || done.cycles > len(a.CycleHistory) {
			done = savedCounts{}
		}
		for _, t := range a.TradeHistory[done.trades:] {
			if _, err := tradeStmt.ExecContext(ctx,
				t.ID, a.ID, t.Instrument, string(t.Kind), t.Quantity, t.Price, t.Value,
				t.Time, string(t.Status), string(t.Reason), t.Reasoning, t.RealizedPL,
			); err != nil {
				return fmt.Errorf("insert trade %s: %w", t.ID, err)
			}
		}
		for _, c := range a.CycleHistory[done.cycles:] {
			if _, err := snapStmt.ExecContext(ctx,
				a.ID, c.Cycle, c.Time, c.PortfolioValue, c.Cash, c.TotalReturnPct,
				c.TotalTrades, c.WinRate, c.OpenPositions, c.RealizedPL, c.UnrealizedPL,
			); err != nil {
				return fmt.Errorf("insert snapshot %s/%d: %w", a.ID, c.Cycle, err)
			}
		}
		next[a.ID] = savedCounts{trades: len(a.TradeHistory), cycles: len(a.CycleHistory)}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO arena_state (id, current_cycle, generated_at, body)
		VALUES (1, ?, ?, ?)`, s.CurrentCycle, s.GeneratedAt, string(body)); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	j.saved = next
	return nil
}

func (j *SQLite) Load(ctx context.Context) (*State, error) {
	var body string
	err := j.db.QueryRowContext(ctx, `SELECT body FROM arena_state WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
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

func (j *SQLite) Close() error {
	return j.db.Close()
}
