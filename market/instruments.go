// market/instruments.go
package market

import "strings"

type InstrumentMeta struct {
	Name      string
	BaseCoin  string
	QuoteCoin string
	BasePrice float64 // seed price for the simulated source
}

var Instruments = map[string]InstrumentMeta{
	"BTC/USDT": {Name: "BTC/USDT", BaseCoin: "BTC", QuoteCoin: "USDT", BasePrice: 67000},
	"ETH/USDT": {Name: "ETH/USDT", BaseCoin: "ETH", QuoteCoin: "USDT", BasePrice: 3500},
	"SOL/USDT": {Name: "SOL/USDT", BaseCoin: "SOL", QuoteCoin: "USDT", BasePrice: 170},
	"BNB/USDT": {Name: "BNB/USDT", BaseCoin: "BNB", QuoteCoin: "USDT", BasePrice: 600},
}

// DefaultInstruments is the instrument universe used when none is configured.
func DefaultInstruments() []string {
	return []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT"}
}

// ExchangeSymbol converts "BTC/USDT" into the concatenated form "BTCUSDT"
// used by exchange REST APIs.
func ExchangeSymbol(instrument string) string {
	return strings.ToUpper(strings.ReplaceAll(instrument, "/", ""))
}

// SplitInstrument returns the base and quote coins of "BASE/QUOTE".
func SplitInstrument(instrument string) (base, quote string) {
	base, quote, _ = strings.Cut(instrument, "/")
	return base, quote
}
