package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/ledger"
	"github.com/rustyeddy/arena/market"
)

func quotes(qs ...market.Quote) market.QuoteSet {
	out := make(market.QuoteSet, len(qs))
	for _, q := range qs {
		out[q.Instrument] = q
	}
	return out
}

func TestKindsRegistered(t *testing.T) {
	assert.Equal(t, []string{"buyhold", "emacross", "hold", "llm", "momentum"}, Kinds())
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("hold", func(config.AgentConfig) (Agent, error) { return nil, nil })
	})
}

func TestBuild(t *testing.T) {
	got, err := Build([]config.AgentConfig{
		{ID: "a", Kind: "momentum", Seed: 1},
		{ID: "b", Name: "Bravo", Kind: " HOLD "},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID())
	assert.Equal(t, "a", got[0].Name())
	assert.Equal(t, "Bravo", got[1].Name())
	assert.IsType(t, &Hold{}, got[1])
}

func TestBuildFailsFast(t *testing.T) {
	tests := []struct {
		name string
		cfgs []config.AgentConfig
		msg  string
	}{
		{"unknown kind", []config.AgentConfig{{ID: "a", Kind: "gpt5"}}, "unknown agent kind"},
		{"duplicate id", []config.AgentConfig{{ID: "a", Kind: "hold"}, {ID: "a", Kind: "hold"}}, "duplicate id"},
		{"missing id", []config.AgentConfig{{Kind: "hold"}}, "id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.cfgs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestHoldNeverTrades(t *testing.T) {
	h := &Hold{}
	in, err := h.Decide(context.Background(), DecisionInput{
		Quotes: quotes(market.Quote{Instrument: "BTC/USDT", Bid: 1, Ask: 1}),
		Cash:   100,
	})
	assert.NoError(t, err)
	assert.Nil(t, in)
}

func TestBuyHoldAllocatesOnePerCycle(t *testing.T) {
	b := &BuyHold{}
	qs := quotes(
		market.Quote{Instrument: "BTC/USDT", Bid: 99, Ask: 100},
		market.Quote{Instrument: "ETH/USDT", Bid: 9, Ask: 10},
	)

	in, err := b.Decide(context.Background(), DecisionInput{Quotes: qs, Cash: 1000, PortfolioValue: 1000})
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, ledger.Buy, in.Kind)
	assert.Equal(t, "BTC/USDT", in.Instrument)
	assert.InDelta(t, 5, in.Quantity, 1e-9)

	in, err = b.Decide(context.Background(), DecisionInput{
		Quotes:    qs,
		Cash:      500,
		Positions: map[string]ledger.Position{"BTC/USDT": {Instrument: "BTC/USDT", Quantity: 5}},
	})
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, "ETH/USDT", in.Instrument)
	assert.InDelta(t, 50, in.Quantity, 1e-9)

	in, err = b.Decide(context.Background(), DecisionInput{
		Quotes: qs,
		Positions: map[string]ledger.Position{
			"BTC/USDT": {Quantity: 5},
			"ETH/USDT": {Quantity: 50},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, in)
	assert.Equal(t, "fully allocated", b.LastReasoning())
}
