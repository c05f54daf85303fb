package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 50, cfg.Arena.Cycles)
	assert.Equal(t, 10000.0, cfg.Arena.StartingCapital)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT"}, cfg.Arena.Instruments)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"zero cycles", func(c *Config) { c.Arena.Cycles = 0 }, "arena.cycles must be positive"},
		{"negative capital", func(c *Config) { c.Arena.StartingCapital = -1 }, "arena.starting_capital must be positive"},
		{"bad interval", func(c *Config) { c.Arena.CycleInterval = "soon" }, "arena.cycle_interval"},
		{"zero interval ok", func(c *Config) { c.Arena.CycleInterval = "" }, ""},
		{"missing decision timeout", func(c *Config) { c.Arena.DecisionTimeout = "" }, "arena.decision_timeout"},
		{"negative quote timeout", func(c *Config) { c.Arena.QuoteTimeout = "-1s" }, "arena.quote_timeout"},
		{"no instruments", func(c *Config) { c.Arena.Instruments = nil }, "at least one instrument"},
		{"malformed instrument", func(c *Config) { c.Arena.Instruments = []string{"BTCUSDT"} }, "not BASE/QUOTE"},
		{"duplicate instrument", func(c *Config) { c.Arena.Instruments = []string{"BTC/USDT", "BTC/USDT"} }, "duplicate"},
		{"negative concurrency", func(c *Config) { c.Arena.MaxConcurrency = -2 }, "max_concurrency"},
		{"unknown source", func(c *Config) { c.Market.Source = "oanda" }, "market.source"},
		{"bad spread", func(c *Config) { c.Market.HalfSpread = 0.6 }, "market.half_spread"},
		{"bad base price", func(c *Config) { c.Market.BasePrices = map[string]float64{"BTC/USDT": 0} }, "market.base_prices"},
		{"no agents", func(c *Config) { c.Agents = nil }, "at least one agent"},
		{"agent without id", func(c *Config) { c.Agents[0].ID = "" }, "agents[0].id is required"},
		{"duplicate agent", func(c *Config) { c.Agents[1].ID = c.Agents[0].ID }, "duplicate id"},
		{"agent without kind", func(c *Config) { c.Agents[2].Kind = "" }, "agents[2].kind is required"},
		{"bad probability", func(c *Config) { c.Agents[0].TradeProbability = 1.5 }, "trade_probability"},
		{"no state file", func(c *Config) { c.History.StateFile = "" }, "history.state_file is required"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Market.BasePrices = map[string]float64{"BTC/USDT": 67000}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadYAMLDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	doc := `
arena:
  cycles: 3
  cycle_interval: 1s
  decision_timeout: 2s
  quote_timeout: 2s
  starting_capital: 5000
  instruments: [BTC/USDT, ETH/USDT]
market:
  source: binance
  cache_ttl: 10s
agents:
  - id: gpt
    name: GPT Trader
    kind: llm
    model: gpt-4o-mini
    api_key_env: OPENAI_API_KEY
history:
  state_file: state.json
  sqlite_path: arena.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Arena.Cycles)
	assert.Equal(t, "binance", cfg.Market.Source)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Agents[0].APIKeyEnv)

	d, err := cfg.Arena.DecisionTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, "2s", d.String())
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"arena":{"cycles":0}}`), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestDurations(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1h", "1h0m0s", false},
		{"30m", "30m0s", false},
		{"1s", "1s", false},
		{"", "0s", false},
		{"invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ArenaConfig{CycleInterval: tt.in}.Interval()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, d.String())
			}
		})
	}
}
