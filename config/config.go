package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/arena/market"
)

// Config is the complete arena configuration.
type Config struct {
	Arena   ArenaConfig   `json:"arena" yaml:"arena"`
	Market  MarketConfig  `json:"market" yaml:"market"`
	Agents  []AgentConfig `json:"agents" yaml:"agents"`
	History HistoryConfig `json:"history" yaml:"history"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// ArenaConfig controls the cycle driver.
type ArenaConfig struct {
	Cycles          int      `json:"cycles" yaml:"cycles"`
	CycleInterval   string   `json:"cycle_interval" yaml:"cycle_interval"`     // e.g. "5s"
	DecisionTimeout string   `json:"decision_timeout" yaml:"decision_timeout"` // per agent, per cycle
	QuoteTimeout    string   `json:"quote_timeout" yaml:"quote_timeout"`
	StartingCapital float64  `json:"starting_capital" yaml:"starting_capital"`
	Instruments     []string `json:"instruments" yaml:"instruments"`
	MaxConcurrency  int      `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"` // 0 = one goroutine per agent
}

func (a ArenaConfig) Interval() (time.Duration, error) { return parseDuration(a.CycleInterval) }

func (a ArenaConfig) DecisionTimeoutDuration() (time.Duration, error) {
	return parseDuration(a.DecisionTimeout)
}

func (a ArenaConfig) QuoteTimeoutDuration() (time.Duration, error) {
	return parseDuration(a.QuoteTimeout)
}

// MarketConfig selects and tunes the quote source.
type MarketConfig struct {
	Source     string             `json:"source" yaml:"source"` // "sim" or "binance"
	BaseURL    string             `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	CacheTTL   string             `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
	Seed       int64              `json:"seed,omitempty" yaml:"seed,omitempty"`
	BasePrices map[string]float64 `json:"base_prices,omitempty" yaml:"base_prices,omitempty"`
	HalfSpread float64            `json:"half_spread,omitempty" yaml:"half_spread,omitempty"`
	MaxMove    float64            `json:"max_move,omitempty" yaml:"max_move,omitempty"`
}

func (m MarketConfig) CacheTTLDuration() (time.Duration, error) { return parseDuration(m.CacheTTL) }

// AgentConfig describes one competitor. Kind selects the constructor from
// the agent registry; the remaining fields are read by the kinds that need
// them.
type AgentConfig struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	Kind             string  `json:"kind" yaml:"kind"`
	Seed             int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	TradeProbability float64 `json:"trade_probability,omitempty" yaml:"trade_probability,omitempty"`
	Model            string  `json:"model,omitempty" yaml:"model,omitempty"`
	Endpoint         string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKeyEnv        string  `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	MaxPositionPct   float64 `json:"max_position_pct,omitempty" yaml:"max_position_pct,omitempty"`
	FastPeriod       int     `json:"fast_period,omitempty" yaml:"fast_period,omitempty"`
	SlowPeriod       int     `json:"slow_period,omitempty" yaml:"slow_period,omitempty"`
	MinSpread        float64 `json:"min_spread,omitempty" yaml:"min_spread,omitempty"`
}

// HistoryConfig lists where state is persisted. StateFile is required; the
// rest are optional mirrors.
type HistoryConfig struct {
	StateFile       string `json:"state_file" yaml:"state_file"`
	SQLitePath      string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	RedisURL        string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	RedisKey        string `json:"redis_key,omitempty" yaml:"redis_key,omitempty"`
	PostgresURL     string `json:"postgres_url,omitempty" yaml:"postgres_url,omitempty"`
	ContinueOnError bool   `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "console"
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// MetricsConfig enables a Prometheus listener on Addr during runs. Empty
// disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a YAML or JSON file and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// YAML is a superset of JSON, but keep the explicit fallback for
	// JSON documents yaml.v3 refuses.
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid. Agent kinds are checked
// later against the registry.
func (c *Config) Validate() error {
	a := c.Arena
	if a.Cycles <= 0 {
		return fmt.Errorf("arena.cycles must be positive")
	}
	if a.StartingCapital <= 0 {
		return fmt.Errorf("arena.starting_capital must be positive")
	}
	if a.MaxConcurrency < 0 {
		return fmt.Errorf("arena.max_concurrency must not be negative")
	}
	if d, err := a.Interval(); err != nil || d < 0 {
		return fmt.Errorf("arena.cycle_interval: invalid duration %q", a.CycleInterval)
	}
	if d, err := a.DecisionTimeoutDuration(); err != nil || d <= 0 {
		return fmt.Errorf("arena.decision_timeout must be a positive duration")
	}
	if d, err := a.QuoteTimeoutDuration(); err != nil || d <= 0 {
		return fmt.Errorf("arena.quote_timeout must be a positive duration")
	}
	if len(a.Instruments) == 0 {
		return fmt.Errorf("arena.instruments: at least one instrument is required")
	}
	seen := make(map[string]bool, len(a.Instruments))
	for _, inst := range a.Instruments {
		base, quote := market.SplitInstrument(inst)
		if base == "" || quote == "" {
			return fmt.Errorf("arena.instruments: %q is not BASE/QUOTE", inst)
		}
		if seen[inst] {
			return fmt.Errorf("arena.instruments: duplicate %q", inst)
		}
		seen[inst] = true
	}

	m := c.Market
	if m.Source != "sim" && m.Source != "binance" {
		return fmt.Errorf("market.source must be 'sim' or 'binance'")
	}
	if d, err := m.CacheTTLDuration(); err != nil || d < 0 {
		return fmt.Errorf("market.cache_ttl: invalid duration %q", m.CacheTTL)
	}
	if m.HalfSpread < 0 || m.HalfSpread >= 0.5 {
		return fmt.Errorf("market.half_spread must be in [0, 0.5)")
	}
	if m.MaxMove < 0 || m.MaxMove >= 1 {
		return fmt.Errorf("market.max_move must be in [0, 1)")
	}
	for inst, p := range m.BasePrices {
		if p <= 0 {
			return fmt.Errorf("market.base_prices: %s must be positive", inst)
		}
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("agents: at least one agent is required")
	}
	ids := make(map[string]bool, len(c.Agents))
	for i, ag := range c.Agents {
		if ag.ID == "" {
			return fmt.Errorf("agents[%d].id is required", i)
		}
		if ids[ag.ID] {
			return fmt.Errorf("agents[%d]: duplicate id %q", i, ag.ID)
		}
		ids[ag.ID] = true
		if ag.Kind == "" {
			return fmt.Errorf("agents[%d].kind is required", i)
		}
		if ag.TradeProbability < 0 || ag.TradeProbability > 1 {
			return fmt.Errorf("agents[%d].trade_probability must be between 0 and 1", i)
		}
		if ag.MaxPositionPct < 0 || ag.MaxPositionPct > 1 {
			return fmt.Errorf("agents[%d].max_position_pct must be between 0 and 1", i)
		}
		if ag.FastPeriod < 0 || ag.SlowPeriod < 0 || ag.MinSpread < 0 {
			return fmt.Errorf("agents[%d]: ema cross settings must not be negative", i)
		}
	}

	if c.History.StateFile == "" {
		return fmt.Errorf("history.state_file is required")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}
	return nil
}

// Default returns a runnable configuration: four simulated instruments and
// three rule-based agents.
func Default() *Config {
	return &Config{
		Arena: ArenaConfig{
			Cycles:          50,
			CycleInterval:   "5s",
			DecisionTimeout: "30s",
			QuoteTimeout:    "10s",
			StartingCapital: 10000,
			Instruments:     market.DefaultInstruments(),
		},
		Market: MarketConfig{
			Source:     "sim",
			CacheTTL:   "10s",
			HalfSpread: market.DefaultHalfSpread,
			MaxMove:    market.DefaultMaxMove,
		},
		Agents: []AgentConfig{
			{ID: "momentum-1", Name: "Momentum Trader", Kind: "momentum", Seed: 1, TradeProbability: 0.3},
			{ID: "momentum-2", Name: "Contrarian Trader", Kind: "momentum", Seed: 2, TradeProbability: 0.5},
			{ID: "buyhold-1", Name: "Buy and Hold", Kind: "buyhold"},
		},
		History: HistoryConfig{
			StateFile: "./arena_state.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: ":8050",
		},
	}
}
