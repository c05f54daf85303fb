package arena

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/arena/config"
)

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	c := config.Default()
	c.Arena.MaxConcurrency = 2
	c.History.ContinueOnError = true

	cfg, err := ConfigFrom(c)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Cycles)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.DecisionTimeout)
	assert.Equal(t, 10*time.Second, cfg.QuoteTimeout)
	assert.Equal(t, 10000.0, cfg.StartingCapital)
	assert.Equal(t, c.Arena.Instruments, cfg.Instruments)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.True(t, cfg.ContinueOnPersistError)
}

func TestConfigFromDefaultsTimeouts(t *testing.T) {
	t.Parallel()

	c := config.Default()
	c.Arena.DecisionTimeout = ""
	c.Arena.QuoteTimeout = ""

	cfg, err := ConfigFrom(c)
	require.NoError(t, err)
	assert.Equal(t, DefaultDecisionTimeout, cfg.DecisionTimeout)
	assert.Equal(t, DefaultQuoteTimeout, cfg.QuoteTimeout)
}

func TestConfigFromBadDuration(t *testing.T) {
	t.Parallel()

	c := config.Default()
	c.Arena.CycleInterval = "soon"
	_, err := ConfigFrom(c)
	assert.Error(t, err)
}
