package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/ledger"
)

const (
	DefaultLLMEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultLLMModel    = "gpt-4o-mini"
	DefaultLLMKeyEnv   = "OPENAI_API_KEY"

	defaultMaxPositionPct = 0.10
	defaultTradePct       = 0.03
)

func init() {
	Register("llm", func(cfg config.AgentConfig) (Agent, error) {
		return NewLLM(cfg), nil
	})
}

// LLM asks an OpenAI-compatible chat-completions endpoint for a decision.
// Without an API key it always holds.
type LLM struct {
	base
	reasoning

	Endpoint string
	Model    string
	APIKey   string
	HTTP     *http.Client
	Log      *zap.Logger

	// MaxPositionPct caps the share of portfolio value one opening trade
	// may use.
	MaxPositionPct float64
}

func NewLLM(cfg config.AgentConfig) *LLM {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = DefaultLLMKeyEnv
	}
	l := &LLM{
		base:           base{cfg.ID, cfg.Name},
		Endpoint:       strings.TrimSpace(cfg.Endpoint),
		Model:          strings.TrimSpace(cfg.Model),
		APIKey:         strings.TrimSpace(os.Getenv(keyEnv)),
		HTTP:           &http.Client{Timeout: 60 * time.Second},
		Log:            zap.NewNop(),
		MaxPositionPct: cfg.MaxPositionPct,
	}
	if l.Endpoint == "" {
		l.Endpoint = DefaultLLMEndpoint
	}
	if l.Model == "" {
		l.Model = DefaultLLMModel
	}
	if l.MaxPositionPct <= 0 {
		l.MaxPositionPct = defaultMaxPositionPct
	}
	return l
}

// SetLogger implements Logged.
func (l *LLM) SetLogger(log *zap.Logger) {
	l.Log = log.With(zap.String("agent", l.id), zap.String("model", l.Model))
}

func (l *LLM) logger() *zap.Logger {
	if l.Log == nil {
		return zap.NewNop()
	}
	return l.Log
}

// llmDecision is the JSON object the model is asked to reply with.
type llmDecision struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	Percentage float64 `json:"percentage"`
	Reasoning  string  `json:"reasoning"`
}

func (l *LLM) Decide(ctx context.Context, in DecisionInput) (*ledger.Intent, error) {
	if l.APIKey == "" {
		l.set("no API key configured, holding")
		return nil, nil
	}
	if len(in.Quotes) == 0 {
		l.set("no quotes")
		return nil, nil
	}

	log := l.logger().With(zap.Int("cycle", in.Cycle))
	start := time.Now()
	content, err := l.complete(ctx, l.systemPrompt(in), userPrompt(in))
	if err != nil {
		log.Warn("chat completion failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		l.set("completion failed: %v", err)
		return nil, err
	}
	d, err := parseDecision(content)
	if err != nil {
		log.Warn("unparsable model reply", zap.String("reply", content), zap.Error(err))
		l.set("unparsable reply: %v", err)
		return nil, err
	}
	log.Debug("model decision",
		zap.Duration("elapsed", time.Since(start)),
		zap.String("action", d.Action),
		zap.String("symbol", d.Symbol),
		zap.Float64("percentage", d.Percentage),
	)
	return l.intent(d, in), nil
}

func (l *LLM) complete(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model":       l.Model,
		"temperature": 0.7,
		"max_tokens":  300,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.APIKey)

	client := l.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	l.logger().Debug("chat completion response", zap.String("endpoint", l.Endpoint), zap.Int("status", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completion http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion content is empty")
	}
	return content, nil
}

// parseDecision accepts bare JSON or JSON inside a markdown code fence.
func parseDecision(text string) (llmDecision, error) {
	trimmed := strings.TrimSpace(text)
	if i := strings.Index(trimmed, "```"); i >= 0 {
		trimmed = trimmed[i+3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		if j := strings.Index(trimmed, "```"); j >= 0 {
			trimmed = trimmed[:j]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	var d llmDecision
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
		return llmDecision{}, fmt.Errorf("invalid decision JSON: %w", err)
	}
	d.Action = strings.ToLower(strings.TrimSpace(d.Action))
	d.Symbol = strings.ToUpper(strings.TrimSpace(d.Symbol))
	return d, nil
}

// intent sizes a decision. Opening trades use Percentage of portfolio
// value, capped at MaxPositionPct; closing trades use Percentage of the
// open position. Percentages above 1 are read as whole percents.
func (l *LLM) intent(d llmDecision, in DecisionInput) *ledger.Intent {
	if d.Action == "" || d.Action == "hold" {
		l.set("%s", orDefault(d.Reasoning, "holding"))
		return nil
	}
	kind, err := ledger.ParseKind(d.Action)
	if err != nil {
		l.set("unknown action %q", d.Action)
		return nil
	}
	q, ok := in.Quotes[d.Symbol]
	if !ok {
		l.set("symbol %s not in market data", d.Symbol)
		return nil
	}

	pct := d.Percentage
	if pct > 1 {
		pct /= 100
	}
	if !ledger.PositiveFinite(pct) {
		pct = defaultTradePct
	}

	pos, held := in.Positions[d.Symbol]
	var qty float64
	switch kind {
	case ledger.Buy, ledger.Short:
		pct = math.Min(pct, l.MaxPositionPct)
		value := in.PortfolioValue * pct
		price := q.Ask
		if kind == ledger.Short {
			price = q.Bid
		}
		if !ledger.PositiveFinite(price) {
			l.set("no price for %s", d.Symbol)
			return nil
		}
		if kind == ledger.Buy && value > in.Cash {
			l.set("insufficient cash to buy %s", d.Symbol)
			return nil
		}
		qty = value / price
	case ledger.Sell, ledger.Cover:
		if !held || (kind == ledger.Sell && !pos.Long()) || (kind == ledger.Cover && !pos.Short()) {
			l.set("no position in %s to %s", d.Symbol, d.Action)
			return nil
		}
		size := math.Abs(pos.Quantity)
		qty = math.Min(size, size*pct)
	}

	return &ledger.Intent{
		Kind:       kind,
		Instrument: d.Symbol,
		Quantity:   qty,
		Reasoning:  l.set("%s", orDefault(d.Reasoning, "no reasoning provided")),
	}
}

func (l *LLM) systemPrompt(in DecisionInput) string {
	return fmt.Sprintf(strings.TrimSpace(`
You are an expert cryptocurrency trader competing against other traders.
Analyze the market data and make one trading decision.

Respond ONLY with valid JSON in this exact format:
{
  "action": "buy" | "sell" | "short" | "cover" | "hold",
  "symbol": one of %s,
  "percentage": 0.02 to %.2f (share of portfolio for buy/short, share of the position for sell/cover),
  "reasoning": "brief explanation"
}

You can sell longs or cover shorts you currently hold to take profits or cut losses.
`), strings.Join(in.Quotes.Instruments(), ", "), l.MaxPositionPct)
}

func userPrompt(in DecisionInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle: %d\n", in.Cycle)
	fmt.Fprintf(&b, "Current Portfolio Value: $%.2f\n", in.PortfolioValue)
	fmt.Fprintf(&b, "Available Cash: $%.2f\n\n", in.Cash)

	if len(in.Positions) > 0 {
		b.WriteString("Current Positions:\n")
		for _, inst := range sortedKeys(in.Positions) {
			p := in.Positions[inst]
			fmt.Fprintf(&b, "  %s: %s %.6f @ $%.2f (P&L: $%+.2f / %+.2f%%)\n",
				inst, p.Side(), math.Abs(p.Quantity), p.EntryPrice, p.UnrealizedPL, p.ReturnPct())
		}
		b.WriteString("\n")
	}

	b.WriteString("Market Data:\n")
	for _, inst := range in.Quotes.Instruments() {
		q := in.Quotes[inst]
		fmt.Fprintf(&b, "\n%s:\n", inst)
		fmt.Fprintf(&b, "  Current Price: $%.2f (bid $%.2f / ask $%.2f)\n", q.Mark(), q.Bid, q.Ask)
		fmt.Fprintf(&b, "  24h Change: %.2f%%\n", q.Change24hPct)
		fmt.Fprintf(&b, "  24h High: $%.2f\n", q.High24h)
		fmt.Fprintf(&b, "  24h Low: $%.2f\n", q.Low24h)
	}
	return b.String()
}

func sortedKeys(m map[string]ledger.Position) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
