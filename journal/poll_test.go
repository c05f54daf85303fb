package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollDeliversChanges(t *testing.T) {
	t.Parallel()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := fixtureState(t)
	require.NoError(t, fs.Save(ctx, s))

	states := Poll(ctx, fs, 5*time.Millisecond)

	first := <-states
	assert.Equal(t, 2, first.CurrentCycle)

	s.CurrentCycle = 3
	require.NoError(t, fs.Save(ctx, s))

	select {
	case next := <-states:
		assert.Equal(t, 3, next.CurrentCycle)
	case <-ctx.Done():
		t.Fatal("change not delivered")
	}

	cancel()
	for range states {
	}
}

func TestPollSkipsMissingState(t *testing.T) {
	t.Parallel()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var got int
	for range Poll(ctx, fs, 5*time.Millisecond) {
		got++
	}
	assert.Zero(t, got)
}
