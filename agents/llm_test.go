package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/ledger"
	"github.com/rustyeddy/arena/market"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Contains(t, req.Messages[1].Content, "BTC/USDT")
		}

		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLLM(t *testing.T, endpoint string) *LLM {
	t.Setenv("ARENA_TEST_LLM_KEY", "test-key")
	return NewLLM(config.AgentConfig{
		ID:        "gpt",
		Name:      "GPT",
		Endpoint:  endpoint,
		Model:     "test-model",
		APIKeyEnv: "ARENA_TEST_LLM_KEY",
	})
}

var llmInput = DecisionInput{
	Cycle: 4,
	Quotes: quotes(
		market.Quote{Instrument: "BTC/USDT", Bid: 49900, Ask: 50000, Last: 49950, Change24hPct: 3},
		market.Quote{Instrument: "ETH/USDT", Bid: 2990, Ask: 3000},
	),
	PortfolioValue: 10000,
	Cash:           8000,
	Positions: map[string]ledger.Position{
		"ETH/USDT": {Instrument: "ETH/USDT", Quantity: -0.5, EntryPrice: 3100},
	},
}

func TestLLMBuyFromFencedReply(t *testing.T) {
	reply := "Here you go:\n```json\n{\"action\":\"BUY\",\"symbol\":\"btc/usdt\",\"percentage\":0.04,\"reasoning\":\"breakout\"}\n```"
	l := newTestLLM(t, chatServer(t, http.StatusOK, reply).URL)

	got, err := l.Decide(context.Background(), llmInput)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.Buy, got.Kind)
	assert.Equal(t, "BTC/USDT", got.Instrument)
	assert.InDelta(t, 400.0/50000, got.Quantity, 1e-12)
	assert.Equal(t, "breakout", got.Reasoning)
	assert.Equal(t, "breakout", l.LastReasoning())
}

func TestLLMCapsOpeningSize(t *testing.T) {
	reply := `{"action":"short","symbol":"BTC/USDT","percentage":50,"reasoning":"all in"}`
	l := newTestLLM(t, chatServer(t, http.StatusOK, reply).URL)

	got, err := l.Decide(context.Background(), llmInput)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.Short, got.Kind)
	assert.InDelta(t, 1000.0/49900, got.Quantity, 1e-12)
}

func TestLLMCoverUsesPositionShare(t *testing.T) {
	reply := `{"action":"cover","symbol":"ETH/USDT","percentage":0.5,"reasoning":"lock in"}`
	l := newTestLLM(t, chatServer(t, http.StatusOK, reply).URL)

	got, err := l.Decide(context.Background(), llmInput)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.Cover, got.Kind)
	assert.InDelta(t, 0.25, got.Quantity, 1e-12)
}

func TestLLMHoldAndInvalidChoices(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"hold", `{"action":"hold","reasoning":"wait"}`},
		{"unknown symbol", `{"action":"buy","symbol":"DOGE/USDT","percentage":0.02}`},
		{"sell without long", `{"action":"sell","symbol":"ETH/USDT","percentage":1}`},
		{"unknown action", `{"action":"yolo","symbol":"BTC/USDT"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLLM(t, chatServer(t, http.StatusOK, tt.reply).URL)
			got, err := l.Decide(context.Background(), llmInput)
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.NotEmpty(t, l.LastReasoning())
		})
	}
}

func TestLLMErrors(t *testing.T) {
	l := newTestLLM(t, chatServer(t, http.StatusUnauthorized, "").URL)
	_, err := l.Decide(context.Background(), llmInput)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	l = newTestLLM(t, chatServer(t, http.StatusOK, "not json at all").URL)
	_, err = l.Decide(context.Background(), llmInput)
	assert.Error(t, err)
}

func TestLLMLogsFailedCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Setenv("ARENA_TEST_LLM_KEY", "test-key")
	agts, err := Build([]config.AgentConfig{
		{ID: "gpt", Kind: "llm", Endpoint: chatServer(t, http.StatusUnauthorized, "").URL, APIKeyEnv: "ARENA_TEST_LLM_KEY"},
		{ID: "idle", Kind: "hold"},
	})
	require.NoError(t, err)
	UseLogger(agts, zap.New(core))

	_, err = agts[0].Decide(context.Background(), llmInput)
	require.Error(t, err)

	status := logs.FilterMessage("chat completion response").All()
	require.Len(t, status, 1)
	assert.EqualValues(t, http.StatusUnauthorized, status[0].ContextMap()["status"])

	failed := logs.FilterMessage("chat completion failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "gpt", failed[0].ContextMap()["agent"])
	assert.EqualValues(t, 4, failed[0].ContextMap()["cycle"])
}

func TestLLMWithoutKeyHolds(t *testing.T) {
	t.Setenv("ARENA_TEST_MISSING_KEY", "")
	l := NewLLM(config.AgentConfig{ID: "gpt", APIKeyEnv: "ARENA_TEST_MISSING_KEY"})

	got, err := l.Decide(context.Background(), llmInput)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Contains(t, l.LastReasoning(), "no API key")
}

func TestParseDecision(t *testing.T) {
	d, err := parseDecision("```\n{\"action\":\" Sell \",\"symbol\":\"eth/usdt\",\"percentage\":0.5}\n```")
	require.NoError(t, err)
	assert.Equal(t, "sell", d.Action)
	assert.Equal(t, "ETH/USDT", d.Symbol)
	assert.Equal(t, 0.5, d.Percentage)
}
