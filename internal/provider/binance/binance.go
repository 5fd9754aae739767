package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
	"ratefeed/internal/provider/ratelimit"
)

// quoteAliases maps fiat quote currencies onto the stablecoin pairs
// Binance actually trades. USD itself has no spot pair there.
var quoteAliases = map[string]string{
	"USD": "USDT",
}

// periodIntervals picks a kline interval per coarse period when the
// caller does not supply one.
var periodIntervals = map[string]string{
	"1D": "1h",
	"1W": "4h",
	"1M": "1d",
	"3M": "1d",
	"1Y": "1w",
}

type Config struct {
	Name    string // display name, default: Binance
	BaseURL string // default: https://api.binance.com
}

// Adapter exposes Binance spot endpoints. It answers prices and klines
// but has no listing, detail or market-summary capability.
type Adapter struct {
	cfg  Config
	http *httpx.Client
	gate *ratelimit.Gate
}

func New(cfg Config, client *httpx.Client, gate *ratelimit.Gate) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Binance"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	return &Adapter{cfg: cfg, http: client, gate: gate}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) CurrentPrice(ctx context.Context, asset, currency string) (float64, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return 0, err
	}

	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	q := url.Values{"symbol": {pair(asset, currency)}}
	if err := a.getJSON(ctx, "/api/v3/ticker/price", q, &out); err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: bad price %q: %w", out.Price, err)
	}
	return price, nil
}

func (a *Adapter) HistoricalData(ctx context.Context, asset, currency string, r provider.HistoricalRange) ([]provider.PricePoint, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return nil, err
	}

	interval := r.Interval
	if interval == "" {
		interval = periodIntervals[strings.ToUpper(r.Period)]
		if interval == "" {
			interval = "1d"
		}
	}

	q := url.Values{
		"symbol":   {pair(asset, currency)},
		"interval": {interval},
		"limit":    {"1000"},
	}
	if !r.Start.IsZero() {
		q.Set("startTime", strconv.FormatInt(r.Start.UnixMilli(), 10))
	}
	if !r.End.IsZero() {
		q.Set("endTime", strconv.FormatInt(r.End.UnixMilli(), 10))
	}

	// kline rows are positional arrays mixing numbers and strings:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]json.RawMessage
	if err := a.getJSON(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, err
	}

	points := make([]provider.PricePoint, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openTime int64
		var closePrice, volume string
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		if err := json.Unmarshal(row[4], &closePrice); err != nil {
			continue
		}
		_ = json.Unmarshal(row[5], &volume)

		price, err := strconv.ParseFloat(closePrice, 64)
		if err != nil {
			continue
		}
		point := provider.PricePoint{
			Timestamp: time.UnixMilli(openTime).UTC(),
			Price:     price,
		}
		if v, err := strconv.ParseFloat(volume, 64); err == nil {
			point.Volume = v
		}
		points = append(points, point)
	}
	return points, nil
}

func (a *Adapter) CheckAvailability(ctx context.Context) error {
	var out struct{}
	return a.getJSON(ctx, "/api/v3/ping", nil, &out)
}

func (a *Adapter) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := a.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("binance: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("binance: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("binance: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("binance: decode response: %w", err)
	}
	return nil
}

func pair(asset, currency string) string {
	quote := strings.ToUpper(currency)
	if alias, ok := quoteAliases[quote]; ok {
		quote = alias
	}
	return strings.ToUpper(asset) + quote
}
