package arena

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/arena/config"
)

const (
	DefaultDecisionTimeout = 30 * time.Second
	DefaultQuoteTimeout    = 10 * time.Second
)

// Config controls the cycle driver.
type Config struct {
	Cycles          int
	Interval        time.Duration
	DecisionTimeout time.Duration
	QuoteTimeout    time.Duration
	StartingCapital float64
	Instruments     []string

	// MaxConcurrency bounds simultaneous Decide calls. Zero means no bound.
	MaxConcurrency int

	// ContinueOnPersistError keeps the run going after a failed checkpoint.
	ContinueOnPersistError bool
}

// ConfigFrom converts the file configuration.
func ConfigFrom(c *config.Config) (Config, error) {
	interval, err := c.Arena.Interval()
	if err != nil {
		return Config{}, fmt.Errorf("cycle_interval: %w", err)
	}
	decision, err := c.Arena.DecisionTimeoutDuration()
	if err != nil {
		return Config{}, fmt.Errorf("decision_timeout: %w", err)
	}
	quote, err := c.Arena.QuoteTimeoutDuration()
	if err != nil {
		return Config{}, fmt.Errorf("quote_timeout: %w", err)
	}

	cfg := Config{
		Cycles:                 c.Arena.Cycles,
		Interval:               interval,
		DecisionTimeout:        decision,
		QuoteTimeout:           quote,
		StartingCapital:        c.Arena.StartingCapital,
		Instruments:            append([]string(nil), c.Arena.Instruments...),
		MaxConcurrency:         c.Arena.MaxConcurrency,
		ContinueOnPersistError: c.History.ContinueOnError,
	}
	return cfg.withDefaults(), cfg.validate()
}

func (c Config) withDefaults() Config {
	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = DefaultDecisionTimeout
	}
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = DefaultQuoteTimeout
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Cycles <= 0:
		return errors.New("cycles must be positive")
	case c.Interval < 0:
		return errors.New("interval must not be negative")
	case !(c.StartingCapital > 0):
		return errors.New("starting capital must be positive")
	case len(c.Instruments) == 0:
		return errors.New("at least one instrument is required")
	case c.MaxConcurrency < 0:
		return errors.New("max concurrency must not be negative")
	}
	return nil
}
