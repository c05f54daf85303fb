package journal

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Postgres tests need a live server. Point ARENA_TEST_POSTGRES_URL at a
// scratch database; the arena tables in it are truncated.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()

	url := os.Getenv("ARENA_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("ARENA_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	p, err := NewPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, err = p.pool.Exec(ctx, `TRUNCATE trades, cycle_snapshots, arena_state`)
	require.NoError(t, err)
	return p
}

func pgCount(t *testing.T, p *Postgres, table string) int {
	t.Helper()
	var n int
	require.NoError(t, p.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestNum(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.1", num(0.1))
	assert.Equal(t, "1020", num(1020))
	assert.Equal(t, "-3.5", num(-3.5))
}

func TestPostgresLoadEmpty(t *testing.T) {
	p := newTestPostgres(t)

	_, err := p.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoState)
}

func TestPostgresSaveLoad(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	want := fixtureState(t)
	require.NoError(t, p.Save(ctx, want))
	require.NoError(t, p.Save(ctx, want))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.CurrentCycle, got.CurrentCycle)
	require.Len(t, got.Agents, 2)
	assert.Equal(t, "alpha", got.Agents[0].ID)

	assert.Equal(t, 4, pgCount(t, p, "trades"))
	assert.Equal(t, 4, pgCount(t, p, "cycle_snapshots"))
	assert.Equal(t, 1, pgCount(t, p, "arena_state"))

	values, err := p.PortfolioValues(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.InDelta(t, want.Agents[0].PortfolioValue, values[1].InexactFloat64(), 1e-9)
}
