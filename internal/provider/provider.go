package provider

import (
	"context"
	"time"
)

// PricePoint is one sample of a historical series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume,omitempty"`
	MarketCap float64   `json:"market_cap,omitempty"`
}

// Asset is one entry of a source's listing.
type Asset struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Rank     int    `json:"rank,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// AssetDetail is the full record a source keeps for one asset.
type AssetDetail struct {
	Asset
	Currency     string    `json:"currency"`
	Price        float64   `json:"price"`
	MarketCap    float64   `json:"market_cap"`
	Volume24h    float64   `json:"volume_24h"`
	Change24hPct float64   `json:"change_24h_pct"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MarketInfo summarizes the overall market as one source sees it.
type MarketInfo struct {
	TotalMarketCap float64   `json:"total_market_cap"`
	TotalVolume24h float64   `json:"total_volume_24h"`
	BTCDominance   float64   `json:"btc_dominance"`
	ActiveAssets   int       `json:"active_assets"`
	Currency       string    `json:"currency"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HistoricalRange selects the slice of history a caller wants.
// Period is the coarse window (1D, 1W, 1M, 3M, 1Y); Interval is a
// source-native sampling hint. Start/End, when set, narrow the window.
type HistoricalRange struct {
	Period   string
	Interval string
	Start    time.Time
	End      time.Time
}

// ListOptions narrows an asset listing request.
type ListOptions struct {
	Limit           int
	IncludeMetadata bool
}

// MarketOptions narrows a market summary request.
type MarketOptions struct {
	Limit    int
	Currency string
}

// Provider is the minimum every source adapter satisfies. Everything
// else is an optional capability discovered by type assertion; a source
// that lacks one is skipped, never failed.
type Provider interface {
	Name() string
}

// CurrentPricer answers spot prices.
type CurrentPricer interface {
	Provider
	CurrentPrice(ctx context.Context, asset, currency string) (float64, error)
}

// HistoricalProvider answers time series.
type HistoricalProvider interface {
	HistoricalData(ctx context.Context, asset, currency string, r HistoricalRange) ([]PricePoint, error)
}

// AssetLister enumerates the assets a source knows about.
type AssetLister interface {
	AvailableAssets(ctx context.Context, opts ListOptions) ([]Asset, error)
}

// AssetDetailer answers per-asset detail records.
type AssetDetailer interface {
	AssetDetails(ctx context.Context, asset, currency string) (*AssetDetail, error)
}

// MarketInformer answers market-wide summaries.
type MarketInformer interface {
	MarketInfo(ctx context.Context, opts MarketOptions) (*MarketInfo, error)
}

// AvailabilityChecker probes whether the upstream answers at all.
// A nil return means available; the error carries the reason.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context) error
}

// Keyed is implemented by adapters whose upstream wants an API key.
type Keyed interface {
	SetAPIKey(key string)
	RequiresAPIKey() bool
	HasValidAPIKey() bool
}
