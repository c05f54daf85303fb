package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	DefaultHalfSpread = 0.0005
	DefaultMaxMove    = 0.02
)

// SimSource is a random-walk quote source. Every call moves each price by a
// uniform step of at most MaxMove (fractional) and quotes bid/ask around it.
type SimSource struct {
	HalfSpread float64
	MaxMove    float64

	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
	open   map[string]float64
	high   map[string]float64
	low    map[string]float64
	now    func() time.Time
}

// NewSimSource seeds the walk. Instruments missing from base start at their
// InstrumentMeta.BasePrice, or 100 when unknown.
func NewSimSource(seed int64, base map[string]float64) *SimSource {
	s := &SimSource{
		HalfSpread: DefaultHalfSpread,
		MaxMove:    DefaultMaxMove,
		rng:        rand.New(rand.NewSource(seed)),
		prices:     make(map[string]float64),
		open:       make(map[string]float64),
		high:       make(map[string]float64),
		low:        make(map[string]float64),
		now:        time.Now,
	}
	for k, v := range base {
		if v > 0 {
			s.prices[k] = v
		}
	}
	return s
}

func (s *SimSource) Quotes(ctx context.Context, instruments []string) (QuoteSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make(QuoteSet, len(instruments))
	for _, inst := range instruments {
		price := s.step(inst)
		out[inst] = Quote{
			Instrument:   inst,
			Bid:          price * (1 - s.HalfSpread),
			Ask:          price * (1 + s.HalfSpread),
			Last:         price,
			Change24hPct: (price - s.open[inst]) / s.open[inst] * 100,
			High24h:      s.high[inst],
			Low24h:       s.low[inst],
			Volume24h:    1_000_000 + s.rng.Float64()*4_000_000,
			Time:         now,
		}
	}
	return out, nil
}

func (s *SimSource) step(inst string) float64 {
	price, ok := s.prices[inst]
	if !ok || price <= 0 {
		price = 100
		if meta, found := Instruments[inst]; found && meta.BasePrice > 0 {
			price = meta.BasePrice
		}
	}
	if _, seen := s.open[inst]; !seen {
		s.open[inst] = price
		s.high[inst] = price
		s.low[inst] = price
	}

	price *= 1 + (s.rng.Float64()*2-1)*s.MaxMove
	s.prices[inst] = price

	if price > s.high[inst] {
		s.high[inst] = price
	}
	if price < s.low[inst] {
		s.low[inst] = price
	}
	return price
}

// StaticSource always returns the same quotes. Instruments it does not hold
// are omitted. Useful for tests and replays.
type StaticSource struct {
	mu     sync.RWMutex
	quotes QuoteSet
}

func NewStaticSource(quotes ...Quote) *StaticSource {
	s := &StaticSource{quotes: make(QuoteSet)}
	for _, q := range quotes {
		s.quotes[q.Instrument] = q
	}
	return s
}

// Set replaces or adds a quote for subsequent calls.
func (s *StaticSource) Set(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Instrument] = q
}

// Remove drops an instrument so later calls omit it.
func (s *StaticSource) Remove(instrument string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, instrument)
}

func (s *StaticSource) Quotes(ctx context.Context, instruments []string) (QuoteSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(QuoteSet, len(instruments))
	for _, inst := range instruments {
		if q, ok := s.quotes[inst]; ok {
			out[inst] = q
		}
	}
	return out, nil
}
