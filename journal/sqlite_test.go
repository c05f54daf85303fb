package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/arena/ledger"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["cycle_snapshots"])
	assert.True(t, found["arena_state"])
}

func TestSQLiteLoadEmpty(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoState)
}

func TestSQLiteSaveLoad(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	ctx := context.Background()
	want := fixtureState(t)
	require.NoError(t, j.Save(ctx, want))

	got, err := j.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.CurrentCycle, got.CurrentCycle)
	require.Len(t, got.Agents, 2)
	assert.Equal(t, "alpha", got.Agents[0].ID)
	assert.InDelta(t, want.Agents[0].PortfolioValue, got.Agents[0].PortfolioValue, 1e-9)
}

func TestSQLiteSaveIsIdempotent(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	ctx := context.Background()
	s := fixtureState(t)
	require.NoError(t, j.Save(ctx, s))
	require.NoError(t, j.Save(ctx, s))
	require.NoError(t, j.Close())

	// A fresh handle has no memory of what was written and re-sends
	// everything.
	j2, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, j2.Save(ctx, s))
	require.NoError(t, j2.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, 4, count(t, db, "trades"))
	assert.Equal(t, 4, count(t, db, "cycle_snapshots"))
	assert.Equal(t, 1, count(t, db, "arena_state"))
}

func TestSQLiteAppendsNewRows(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	ctx := context.Background()
	accts := fixtureAccounts(t)
	require.NoError(t, j.Save(ctx, NewState(2, t0, accts, nil)))

	var alpha *ledger.Account
	for _, a := range accts {
		if a.ID == "alpha" {
			alpha = a
		}
	}
	fill(t, alpha, "A3", ledger.Sell, "BTC/USDT", 1, 90, t0.Add(3*time.Minute))
	require.NoError(t, alpha.AppendSnapshot(ledger.Snapshot(alpha, 3, t0.Add(3*time.Minute))))
	require.NoError(t, j.Save(ctx, NewState(3, t0, accts, nil)))

	trades, err := j.ListTrades(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "A3", trades[2].ID)
	assert.InDelta(t, -10, trades[2].RealizedPL, 1e-9)

	snaps, err := j.ListSnapshots(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{snaps[0].Cycle, snaps[1].Cycle, snaps[2].Cycle})

	got, err := j.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentCycle)
}
