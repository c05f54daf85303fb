package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the direction of a trade.
type Kind string

const (
	Buy   Kind = "BUY"   // open or add to a long
	Sell  Kind = "SELL"  // reduce or close a long
	Short Kind = "SHORT" // open or add to a short
	Cover Kind = "COVER" // reduce or close a short
)

// ParseKind accepts any case and surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown trade kind %q", s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case Buy, Sell, Short, Cover:
		return true
	}
	return false
}

// Opens reports whether k grows a position rather than reducing one.
func (k Kind) Opens() bool { return k == Buy || k == Short }

type Status string

const (
	Filled   Status = "FILLED"
	Rejected Status = "REJECTED"
)

// Reason explains a rejection. It is empty on filled trades.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInsufficientFunds    Reason = "INSUFFICIENT_FUNDS"
	ReasonInsufficientHoldings Reason = "INSUFFICIENT_HOLDINGS"
	ReasonNoQuote              Reason = "NO_QUOTE"
	ReasonInvalidQuantity      Reason = "INVALID_QUANTITY"
	ReasonInvalidKind          Reason = "INVALID_KIND"
	ReasonOppositePosition     Reason = "OPPOSITE_POSITION"
)

// Intent is what an agent asks for in a cycle. A nil *Intent means hold.
type Intent struct {
	Kind       Kind    `json:"kind"`
	Instrument string  `json:"instrument"`
	Quantity   float64 `json:"quantity"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

func (i Intent) String() string {
	return fmt.Sprintf("%s %g %s", i.Kind, i.Quantity, i.Instrument)
}

// Trade is one evaluated intent. Rejected trades are kept in the history
// with a Reason and have no effect on the account.
type Trade struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Instrument string    `json:"instrument"`
	Kind       Kind      `json:"kind"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Value      float64   `json:"value"`
	Time       time.Time `json:"timestamp"`
	Status     Status    `json:"status"`
	Reason     Reason    `json:"reason,omitempty"`
	Reasoning  string    `json:"reasoning,omitempty"`
	RealizedPL float64   `json:"realized_pl,omitempty"`
}

func (t Trade) Filled() bool { return t.Status == Filled }
