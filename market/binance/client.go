package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/arena/market"
)

const DefaultBaseURL = "https://api.binance.us"

// Client reads 24h ticker statistics from the Binance public REST API. It
// needs no credentials.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

type ticker24h struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	CloseTime          int64  `json:"closeTime"`
}

func (c *Client) get(ctx context.Context, path string, opts map[string]string) (io.ReadCloser, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	u.Path = path

	q := u.Query()
	for k, v := range opts {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, fmt.Errorf("binance ticker http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp.Body, nil
}

// Quotes implements market.Source. Symbols Binance does not return are
// omitted; rows that fail to parse or carry non-finite numbers are skipped.
func (c *Client) Quotes(ctx context.Context, instruments []string) (market.QuoteSet, error) {
	if len(instruments) == 0 {
		return market.QuoteSet{}, nil
	}

	bySymbol := make(map[string]string, len(instruments))
	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		sym := market.ExchangeSymbol(inst)
		bySymbol[sym] = inst
		symbols = append(symbols, sym)
	}
	list, err := json.Marshal(symbols)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "/api/v3/ticker/24hr", map[string]string{"symbols": string(list)})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var rows []ticker24h
	if err := json.NewDecoder(body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}

	out := make(market.QuoteSet, len(rows))
	for _, r := range rows {
		inst, ok := bySymbol[r.Symbol]
		if !ok {
			continue
		}
		q, err := r.quote(inst)
		if err != nil {
			continue
		}
		out[inst] = q
	}
	return out, nil
}

func (r ticker24h) quote(instrument string) (market.Quote, error) {
	var (
		q   = market.Quote{Instrument: instrument}
		err error
	)
	fields := []struct {
		dst *float64
		src string
	}{
		{&q.Last, r.LastPrice},
		{&q.Bid, r.BidPrice},
		{&q.Ask, r.AskPrice},
		{&q.Change24hPct, r.PriceChangePercent},
		{&q.High24h, r.HighPrice},
		{&q.Low24h, r.LowPrice},
		{&q.Volume24h, r.Volume},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
			return market.Quote{}, fmt.Errorf("%s: parse %q: %w", r.Symbol, f.src, err)
		}
		if math.IsNaN(*f.dst) || math.IsInf(*f.dst, 0) {
			return market.Quote{}, fmt.Errorf("%s: %q is not finite", r.Symbol, f.src)
		}
	}
	if q.Last <= 0 {
		return market.Quote{}, fmt.Errorf("%s: no last price", r.Symbol)
	}
	if q.Bid <= 0 || q.Ask <= 0 {
		q.Bid = q.Last * (1 - market.DefaultHalfSpread)
		q.Ask = q.Last * (1 + market.DefaultHalfSpread)
	}
	if r.CloseTime > 0 {
		q.Time = time.UnixMilli(r.CloseTime).UTC()
	} else {
		q.Time = time.Now().UTC()
	}
	return q, nil
}
