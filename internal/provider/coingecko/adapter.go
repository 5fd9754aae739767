package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ratefeed/internal/provider"
	"ratefeed/internal/provider/ratelimit"
)

// coinIDs maps ticker symbols to CoinGecko coin ids. Symbols not listed
// fall back to their lowercase form, which matches for many smaller
// coins anyway.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"LTC":   "litecoin",
	"LINK":  "chainlink",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"TRX":   "tron",
	"UNI":   "uniswap",
	"XLM":   "stellar",
}

// periodDays maps a coarse period onto CoinGecko's days parameter.
var periodDays = map[string]string{
	"1D": "1",
	"1W": "7",
	"1M": "30",
	"3M": "90",
	"1Y": "365",
}

type Config struct {
	Name string // display name, default: CoinGecko
}

// Adapter exposes CoinGecko through the source capability contract.
// It is the only bundled source with the full capability set.
type Adapter struct {
	name   string
	client *Client
	gate   *ratelimit.Gate
}

func New(cfg Config, client *Client, gate *ratelimit.Gate) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "CoinGecko"
	}
	return &Adapter{name: cfg.Name, client: client, gate: gate}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) CurrentPrice(ctx context.Context, asset, currency string) (float64, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return 0, err
	}
	id := coinID(asset)
	cur := strings.ToLower(currency)

	var out map[string]map[string]float64
	q := url.Values{"ids": {id}, "vs_currencies": {cur}}
	if err := a.client.getJSON(ctx, "/simple/price", q, &out); err != nil {
		return 0, err
	}
	price, ok := out[id][cur]
	if !ok {
		return 0, fmt.Errorf("coingecko: no price for %s/%s", asset, currency)
	}
	return price, nil
}

func (a *Adapter) HistoricalData(ctx context.Context, asset, currency string, r provider.HistoricalRange) ([]provider.PricePoint, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return nil, err
	}
	days, ok := periodDays[strings.ToUpper(r.Period)]
	if !ok {
		days = "30"
	}

	var out struct {
		Prices       [][2]float64 `json:"prices"`
		MarketCaps   [][2]float64 `json:"market_caps"`
		TotalVolumes [][2]float64 `json:"total_volumes"`
	}
	q := url.Values{
		"vs_currency": {strings.ToLower(currency)},
		"days":        {days},
	}
	if err := a.client.getJSON(ctx, "/coins/"+coinID(asset)+"/market_chart", q, &out); err != nil {
		return nil, err
	}

	points := make([]provider.PricePoint, 0, len(out.Prices))
	for i, p := range out.Prices {
		point := provider.PricePoint{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     p[1],
		}
		if i < len(out.TotalVolumes) {
			point.Volume = out.TotalVolumes[i][1]
		}
		if i < len(out.MarketCaps) {
			point.MarketCap = out.MarketCaps[i][1]
		}
		if !r.Start.IsZero() && point.Timestamp.Before(r.Start) {
			continue
		}
		if !r.End.IsZero() && point.Timestamp.After(r.End) {
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// market is one row of /coins/markets.
type market struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
	Rank         int     `json:"market_cap_rank"`
	Volume       float64 `json:"total_volume"`
	Change24h    float64 `json:"price_change_percentage_24h"`
	LastUpdated  string  `json:"last_updated"`
}

func (a *Adapter) AvailableAssets(ctx context.Context, opts provider.ListOptions) ([]provider.Asset, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 || limit > 250 {
		limit = 100
	}

	var rows []market
	q := url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(limit)},
		"page":        {"1"},
	}
	if err := a.client.getJSON(ctx, "/coins/markets", q, &rows); err != nil {
		return nil, err
	}

	assets := make([]provider.Asset, 0, len(rows))
	for _, row := range rows {
		asset := provider.Asset{
			ID:     row.ID,
			Symbol: strings.ToUpper(row.Symbol),
			Name:   row.Name,
		}
		if opts.IncludeMetadata {
			asset.Rank = row.Rank
			asset.ImageURL = row.Image
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (a *Adapter) AssetDetails(ctx context.Context, asset, currency string) (*provider.AssetDetail, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return nil, err
	}

	var rows []market
	q := url.Values{
		"vs_currency": {strings.ToLower(currency)},
		"ids":         {coinID(asset)},
	}
	if err := a.client.getJSON(ctx, "/coins/markets", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("coingecko: unknown asset %s", asset)
	}

	row := rows[0]
	updated, _ := time.Parse(time.RFC3339, row.LastUpdated)
	return &provider.AssetDetail{
		Asset: provider.Asset{
			ID:       row.ID,
			Symbol:   strings.ToUpper(row.Symbol),
			Name:     row.Name,
			Rank:     row.Rank,
			ImageURL: row.Image,
		},
		Currency:     strings.ToUpper(currency),
		Price:        row.CurrentPrice,
		MarketCap:    row.MarketCap,
		Volume24h:    row.Volume,
		Change24hPct: row.Change24h,
		UpdatedAt:    updated,
	}, nil
}

func (a *Adapter) MarketInfo(ctx context.Context, opts provider.MarketOptions) (*provider.MarketInfo, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return nil, err
	}
	cur := strings.ToLower(opts.Currency)
	if cur == "" {
		cur = "usd"
	}

	var out struct {
		Data struct {
			ActiveCryptocurrencies int                `json:"active_cryptocurrencies"`
			TotalMarketCap         map[string]float64 `json:"total_market_cap"`
			TotalVolume            map[string]float64 `json:"total_volume"`
			MarketCapPercentage    map[string]float64 `json:"market_cap_percentage"`
			UpdatedAt              int64              `json:"updated_at"`
		} `json:"data"`
	}
	if err := a.client.getJSON(ctx, "/global", nil, &out); err != nil {
		return nil, err
	}

	return &provider.MarketInfo{
		TotalMarketCap: out.Data.TotalMarketCap[cur],
		TotalVolume24h: out.Data.TotalVolume[cur],
		BTCDominance:   out.Data.MarketCapPercentage["btc"],
		ActiveAssets:   out.Data.ActiveCryptocurrencies,
		Currency:       strings.ToUpper(cur),
		UpdatedAt:      time.Unix(out.Data.UpdatedAt, 0).UTC(),
	}, nil
}

func (a *Adapter) CheckAvailability(ctx context.Context) error {
	var out struct {
		GeckoSays string `json:"gecko_says"`
	}
	return a.client.getJSON(ctx, "/ping", nil, &out)
}

func (a *Adapter) SetAPIKey(key string) { a.client.SetKey(key) }

// RequiresAPIKey is false: the public endpoints answer without a key.
func (a *Adapter) RequiresAPIKey() bool { return false }

// HasValidAPIKey is true regardless: a key only lifts rate limits here.
func (a *Adapter) HasValidAPIKey() bool { return true }

func coinID(symbol string) string {
	if id, ok := coinIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}
