package market

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

var ErrNoQuote = errors.New("quote not found")

// Source returns one quote per instrument it can price. Instruments it cannot
// price are omitted from the set rather than failing the whole call.
type Source interface {
	Quotes(ctx context.Context, instruments []string) (QuoteSet, error)
}

// Quote is an immutable top-of-book snapshot for one instrument.
type Quote struct {
	Instrument   string    `json:"instrument"`
	Bid          float64   `json:"bid"`
	Ask          float64   `json:"ask"`
	Last         float64   `json:"last"`
	Change24hPct float64   `json:"change_24h_pct"`
	High24h      float64   `json:"high_24h"`
	Low24h       float64   `json:"low_24h"`
	Volume24h    float64   `json:"volume_24h"`
	Time         time.Time `json:"time"`
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// Mark is the price used to value an open position: the last traded price,
// or the mid when the source did not report one.
func (q Quote) Mark() float64 {
	if q.Last > 0 && !math.IsInf(q.Last, 0) {
		return q.Last
	}
	return q.Mid()
}

// QuoteSet is the per-cycle set of quotes keyed by instrument. It is built
// once and then only read.
type QuoteSet map[string]Quote

func (s QuoteSet) Get(instrument string) (Quote, bool) {
	q, ok := s[instrument]
	return q, ok
}

// Instruments returns the priced instruments in sorted order.
func (s QuoteSet) Instruments() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy that shares nothing with s.
func (s QuoteSet) Clone() QuoteSet {
	out := make(QuoteSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// QuoteStore holds the latest quote per instrument and is safe for
// concurrent readers.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes QuoteSet
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(QuoteSet)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Instrument] = q
}

// Replace swaps the whole set, dropping instruments that are not in s.
func (qs *QuoteStore) Replace(s QuoteSet) {
	next := s.Clone()
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes = next
}

func (qs *QuoteStore) Get(instr string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[instr]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

func (qs *QuoteStore) Snapshot() QuoteSet {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	return qs.quotes.Clone()
}
