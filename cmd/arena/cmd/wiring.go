package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/internal/logger"
	"github.com/rustyeddy/arena/journal"
	"github.com/rustyeddy/arena/market"
	"github.com/rustyeddy/arena/market/binance"
)

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	log, err := logger.NewLogger(cfg.Level, cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

// buildSource returns the quote source for cfg. The binance source falls
// back to the simulation for anything it cannot price and is cached for
// market.cache_ttl.
func buildSource(cfg config.MarketConfig, log *zap.Logger) (market.Source, error) {
	sim := market.NewSimSource(cfg.Seed, cfg.BasePrices)
	if cfg.HalfSpread > 0 {
		sim.HalfSpread = cfg.HalfSpread
	}
	if cfg.MaxMove > 0 {
		sim.MaxMove = cfg.MaxMove
	}

	switch cfg.Source {
	case "sim":
		return sim, nil
	case "binance":
		var src market.Source = &market.FallbackSource{
			Primary:   binance.NewClient(cfg.BaseURL),
			Secondary: sim,
			Log:       log,
		}
		ttl, err := cfg.CacheTTLDuration()
		if err != nil {
			return nil, fmt.Errorf("market.cache_ttl: %w", err)
		}
		if ttl > 0 {
			src = market.NewCachedSource(src, ttl)
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown market source %q", cfg.Source)
}

// openStores opens the state file and every configured mirror. The state
// file comes first so Load reads from it.
func openStores(ctx context.Context, cfg config.HistoryConfig) (journal.Multi, error) {
	file, err := journal.NewFileStore(cfg.StateFile)
	if err != nil {
		return nil, err
	}
	stores := journal.Multi{file}

	if cfg.SQLitePath != "" {
		db, err := journal.NewSQLite(cfg.SQLitePath)
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		stores = append(stores, db)
	}

	if cfg.RedisURL != "" {
		rs, err := journal.NewRedisStore(cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		stores = append(stores, rs)
	}

	if cfg.PostgresURL != "" {
		pg, err := journal.NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		stores = append(stores, pg)
	}
	return stores, nil
}

// viewerSource is where serve and watch read the state from: a redis key
// when redisURL is set, otherwise the state file.
type viewerSource struct {
	store journal.Store
	redis *journal.RedisStore
	desc  string
}

func openViewerSource(stateFile, redisURL, redisKey string) (*viewerSource, error) {
	if redisURL != "" {
		rs, err := journal.NewRedisStore(redisURL, redisKey)
		if err != nil {
			return nil, err
		}
		return &viewerSource{store: rs, redis: rs, desc: "redis " + rs.Channel()}, nil
	}
	fs, err := journal.NewFileStore(stateFile)
	if err != nil {
		return nil, err
	}
	return &viewerSource{store: fs, desc: fs.Path()}, nil
}

// follow delivers the current state and every later one until ctx ends.
// Redis sources are driven by the update channel, files by polling.
func (v *viewerSource) follow(ctx context.Context, interval time.Duration, log *zap.Logger) (<-chan *journal.State, error) {
	if v.redis == nil {
		return journal.Poll(ctx, v.store, interval), nil
	}

	cycles, err := v.redis.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan *journal.State, 1)
	go func() {
		defer close(out)
		load := func() {
			st, err := v.store.Load(ctx)
			if errors.Is(err, journal.ErrNoState) {
				return
			}
			if err != nil {
				log.Warn("load state", zap.Error(err))
				return
			}
			select {
			case out <- st:
			case <-ctx.Done():
			}
		}

		load()
		for range cycles {
			load()
		}
	}()
	return out, nil
}

func (v *viewerSource) Close() error { return v.store.Close() }
