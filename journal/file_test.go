package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	_, err = fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoState)
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, fs.Path())

	want := fixtureState(t)
	require.NoError(t, fs.Save(context.Background(), want))

	got, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.CurrentCycle, got.CurrentCycle)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	require.Len(t, got.Agents, len(want.Agents))
	for i := range want.Agents {
		assert.Equal(t, want.Agents[i].ID, got.Agents[i].ID)
		assert.InDelta(t, want.Agents[i].PortfolioValue, got.Agents[i].PortfolioValue, 1e-9)
		assert.Len(t, got.Agents[i].TradeHistory, len(want.Agents[i].TradeHistory))
		assert.Len(t, got.Agents[i].CycleHistory, len(want.Agents[i].CycleHistory))
	}
}

func TestFileStoreReplacesWithoutLeftovers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	ctx := context.Background()
	s := fixtureState(t)
	require.NoError(t, fs.Save(ctx, s))
	s.CurrentCycle = 3
	require.NoError(t, fs.Save(ctx, s))

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentCycle)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())

	info, err := os.Stat(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFileStoreCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = fs.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoState)
}

func TestFileStoreEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestFileStoreCanceled(t *testing.T) {
	t.Parallel()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fs.Save(ctx, fixtureState(t)), context.Canceled)
}
