package exchange

import (
	"math"
	"time"

	"github.com/rustyeddy/arena/internal/id"
	"github.com/rustyeddy/arena/ledger"
	"github.com/rustyeddy/arena/market"
)

// Exchange fills intents against the quotes of the current cycle. It only
// decides; applying a fill is the ledger's job.
type Exchange struct {
	quotes *market.QuoteStore

	// Clock stamps trades. Defaults to time.Now.
	Clock func() time.Time
}

func New() *Exchange {
	return &Exchange{
		quotes: market.NewQuoteStore(),
		Clock:  time.Now,
	}
}

// SetQuotes replaces the quote cache wholesale. Instruments missing from qs
// are unpriced until the next call.
func (e *Exchange) SetQuotes(qs market.QuoteSet) { e.quotes.Replace(qs) }

func (e *Exchange) Quotes() market.QuoteSet { return e.quotes.Snapshot() }

// Execute evaluates in against acct using the cached quote for its
// instrument and gives the resulting trade an ID.
func (e *Exchange) Execute(acct *ledger.Account, in ledger.Intent) ledger.Trade {
	now := e.Clock()

	var qp *market.Quote
	if q, err := e.quotes.Get(in.Instrument); err == nil {
		qp = &q
	}

	t := Evaluate(acct, qp, in, now)
	t.ID = id.At(now)
	return t
}

// Evaluate is the pure fill rule. BUY and COVER pay the ask, SELL and SHORT
// receive the bid. A nil quote rejects with NO_QUOTE. Quantities below
// ledger.Epsilon, or whose notional overflows, reject with INVALID_QUANTITY.
// Rejected trades never carry non-finite numbers. acct is only read.
func Evaluate(acct *ledger.Account, quote *market.Quote, in ledger.Intent, now time.Time) ledger.Trade {
	t := ledger.Trade{
		AgentID:    acct.ID,
		Instrument: in.Instrument,
		Kind:       in.Kind,
		Quantity:   in.Quantity,
		Time:       now,
		Status:     ledger.Filled,
		Reasoning:  in.Reasoning,
	}
	if math.IsInf(in.Quantity, 0) || math.IsNaN(in.Quantity) {
		t.Quantity = 0
	}

	if !in.Kind.Valid() {
		return reject(t, ledger.ReasonInvalidKind)
	}
	if !ledger.PositiveFinite(in.Quantity) || in.Quantity < ledger.Epsilon {
		return reject(t, ledger.ReasonInvalidQuantity)
	}
	if quote == nil {
		return reject(t, ledger.ReasonNoQuote)
	}

	price := quote.Bid
	if in.Kind == ledger.Buy || in.Kind == ledger.Cover {
		price = quote.Ask
	}
	if !ledger.PositiveFinite(price) {
		return reject(t, ledger.ReasonNoQuote)
	}
	t.Price = price
	if !ledger.PositiveFinite(in.Quantity * price) {
		return reject(t, ledger.ReasonInvalidQuantity)
	}
	t.Value = in.Quantity * price

	pos, held := acct.Position(in.Instrument)
	affordable := acct.Cash-t.Value >= -ledger.Epsilon

	switch in.Kind {
	case ledger.Buy:
		if held && pos.Short() {
			return reject(t, ledger.ReasonOppositePosition)
		}
		if !affordable {
			return reject(t, ledger.ReasonInsufficientFunds)
		}
	case ledger.Sell:
		if !held || !pos.Long() || pos.Quantity < in.Quantity-ledger.Epsilon {
			return reject(t, ledger.ReasonInsufficientHoldings)
		}
	case ledger.Short:
		if held && pos.Long() {
			return reject(t, ledger.ReasonOppositePosition)
		}
	case ledger.Cover:
		if !held || !pos.Short() || -pos.Quantity < in.Quantity-ledger.Epsilon {
			return reject(t, ledger.ReasonInsufficientHoldings)
		}
		if !affordable {
			return reject(t, ledger.ReasonInsufficientFunds)
		}
	}
	return t
}

func reject(t ledger.Trade, r ledger.Reason) ledger.Trade {
	t.Status = ledger.Rejected
	t.Reason = r
	return t
}
