package market

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CachedSource serves repeated requests from memory for ttl, hitting the
// wrapped source only when the cache is stale or lacks an instrument.
type CachedSource struct {
	src Source
	ttl time.Duration

	mu     sync.Mutex
	cached QuoteSet
	at     time.Time
	now    func() time.Time
}

func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, ttl: ttl, now: time.Now}
}

func (c *CachedSource) Quotes(ctx context.Context, instruments []string) (QuoteSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh(instruments) {
		return c.subset(instruments), nil
	}

	qs, err := c.src.Quotes(ctx, instruments)
	if err != nil {
		return nil, err
	}
	c.cached = qs.Clone()
	c.at = c.now()
	return c.subset(instruments), nil
}

func (c *CachedSource) fresh(instruments []string) bool {
	if c.cached == nil || c.ttl <= 0 || c.now().Sub(c.at) >= c.ttl {
		return false
	}
	for _, inst := range instruments {
		if _, ok := c.cached[inst]; !ok {
			return false
		}
	}
	return true
}

func (c *CachedSource) subset(instruments []string) QuoteSet {
	out := make(QuoteSet, len(instruments))
	for _, inst := range instruments {
		if q, ok := c.cached[inst]; ok {
			out[inst] = q
		}
	}
	return out
}

// FallbackSource asks Primary first and fills whatever it could not price
// from Secondary. A Primary error is logged, not returned.
type FallbackSource struct {
	Primary   Source
	Secondary Source
	Log       *zap.Logger
}

func (f *FallbackSource) Quotes(ctx context.Context, instruments []string) (QuoteSet, error) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}

	out, err := f.Primary.Quotes(ctx, instruments)
	if err != nil {
		log.Warn("primary quote source failed, using fallback", zap.Error(err))
		out = make(QuoteSet, len(instruments))
	}

	var missing []string
	for _, inst := range instruments {
		if _, ok := out[inst]; !ok {
			missing = append(missing, inst)
		}
	}
	if len(missing) == 0 || f.Secondary == nil {
		return out, nil
	}

	extra, err := f.Secondary.Quotes(ctx, missing)
	if err != nil {
		log.Warn("fallback quote source failed", zap.Strings("instruments", missing), zap.Error(err))
		return out, nil
	}
	for k, v := range extra {
		out[k] = v
	}
	return out, nil
}
