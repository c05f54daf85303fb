package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rustyeddy/arena/ledger"
)

const tradeColumns = `trade_id, agent_id, instrument, kind, quantity, price, value, time, status, reason, reasoning, realized_pl`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(row scanner) (ledger.Trade, error) {
	var (
		t                    ledger.Trade
		kind, status, reason string
	)
	err := row.Scan(
		&t.ID,
		&t.AgentID,
		&t.Instrument,
		&kind,
		&t.Quantity,
		&t.Price,
		&t.Value,
		&t.Time,
		&status,
		&reason,
		&t.Reasoning,
		&t.RealizedPL,
	)
	t.Kind, t.Status, t.Reason = ledger.Kind(kind), ledger.Status(status), ledger.Reason(reason)
	return t, err
}

// GetTrade returns a single trade by ID.
func (j *SQLite) GetTrade(ctx context.Context, tradeID string) (ledger.Trade, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return ledger.Trade{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return ledger.Trade{}, err
	}
	return t, nil
}

// ListTrades returns an agent's trades in execution order. An empty
// agentID lists every agent's trades.
func (j *SQLite) ListTrades(ctx context.Context, agentID string) ([]ledger.Trade, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades`
	var args []any
	if agentID != "" {
		q += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	q += ` ORDER BY time ASC, trade_id ASC`

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSnapshots returns an agent's cycle snapshots ordered by cycle.
func (j *SQLite) ListSnapshots(ctx context.Context, agentID string) ([]ledger.CycleSnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT cycle, time, portfolio_value, cash, total_return_pct, total_trades, win_rate, open_positions, realized_pl, unrealized_pl
		FROM cycle_snapshots
		WHERE agent_id = ?
		ORDER BY cycle ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.CycleSnapshot
	for rows.Next() {
		var c ledger.CycleSnapshot
		if err := rows.Scan(
			&c.Cycle,
			&c.Time,
			&c.PortfolioValue,
			&c.Cash,
			&c.TotalReturnPct,
			&c.TotalTrades,
			&c.WinRate,
			&c.OpenPositions,
			&c.RealizedPL,
			&c.UnrealizedPL,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Agents lists the agent IDs with at least one snapshot.
func (j *SQLite) Agents(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT DISTINCT agent_id FROM cycle_snapshots ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MissingCycles reports which of cycles 1..upTo have no snapshot for
// agentID.
func (j *SQLite) MissingCycles(ctx context.Context, agentID string, upTo int) ([]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT cycle FROM cycle_snapshots
		WHERE agent_id = ? AND cycle BETWEEN 1 AND ?
		ORDER BY cycle ASC`, agentID, upTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	have := make(map[int]bool)
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		have[c] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int
	for c := 1; c <= upTo; c++ {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}
