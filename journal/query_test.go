package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/arena/ledger"
)

func savedFixture(t *testing.T) *SQLite {
	t.Helper()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.Save(context.Background(), fixtureState(t)))
	return j
}

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j := savedFixture(t)

	got, err := j.GetTrade(context.Background(), "A2")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.AgentID)
	assert.Equal(t, "BTC/USDT", got.Instrument)
	assert.Equal(t, ledger.Sell, got.Kind)
	assert.Equal(t, ledger.Filled, got.Status)
	assert.InDelta(t, 1, got.Quantity, 1e-9)
	assert.InDelta(t, 110, got.Price, 1e-9)
	assert.InDelta(t, 10, got.RealizedPL, 1e-9)
	assert.Equal(t, "SELL BTC/USDT", got.Reasoning)
	assert.True(t, got.Time.Equal(t0.Add(2*time.Minute)))
}

func TestGetTradeRejected(t *testing.T) {
	t.Parallel()

	j := savedFixture(t)

	got, err := j.GetTrade(context.Background(), "B2")
	require.NoError(t, err)
	assert.Equal(t, ledger.Rejected, got.Status)
	assert.Equal(t, ledger.ReasonNoQuote, got.Reason)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j := savedFixture(t)

	_, err := j.GetTrade(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTrades(t *testing.T) {
	t.Parallel()

	j := savedFixture(t)
	ctx := context.Background()

	beta, err := j.ListTrades(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, beta, 2)
	assert.Equal(t, "B1", beta[0].ID)
	assert.Equal(t, "B2", beta[1].ID)

	all, err := j.ListTrades(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := j.ListTrades(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListSnapshots(t *testing.T) {
	t.Parallel()

	j := savedFixture(t)

	snaps, err := j.ListSnapshots(context.Background(), "beta")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[0].Cycle)
	assert.InDelta(t, 1000, snaps[0].PortfolioValue, 1e-9)
	assert.Equal(t, 2, snaps[1].Cycle)
	assert.InDelta(t, 990, snaps[1].PortfolioValue, 1e-9)
	assert.Equal(t, 1, snaps[1].OpenPositions)
}

func TestAgents(t *testing.T) {
	t.Parallel()

	j := savedFixture(t)

	ids, err := j.Agents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)
}

func TestMissingCycles(t *testing.T) {
	t.Parallel()

	j := savedFixture(t)
	ctx := context.Background()

	missing, err := j.MissingCycles(ctx, "alpha", 2)
	require.NoError(t, err)
	assert.Empty(t, missing)

	missing, err = j.MissingCycles(ctx, "alpha", 4)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, missing)

	missing, err = j.MissingCycles(ctx, "nobody", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, missing)
}
