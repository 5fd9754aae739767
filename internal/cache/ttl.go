package cache

import (
	"strings"
	"time"
)

// Fixed TTLs for the slow-moving operations.
const (
	ListingTTL    = 24 * time.Hour
	DetailTTL     = 10 * time.Minute
	MarketInfoTTL = 5 * time.Minute
)

// volatile is the allow-list of symbols that move fast enough to
// justify the short price TTL.
var volatile = map[string]struct{}{
	"BTC": {},
	"ETH": {},
	"BNB": {},
	"SOL": {},
	"XRP": {},
	"ADA": {},
}

// PriceTTL returns how long a current price stays fresh for a symbol.
func PriceTTL(symbol string) time.Duration {
	if _, ok := volatile[strings.ToUpper(symbol)]; ok {
		return 60 * time.Second
	}
	return 300 * time.Second
}

// HistoricalTTL returns how long a series for the given period stays
// fresh. Longer windows change slower and cost more to refetch.
func HistoricalTTL(period string) time.Duration {
	switch strings.ToUpper(period) {
	case "1D":
		return 1800 * time.Second
	case "1W":
		return 3600 * time.Second
	case "1M":
		return 7200 * time.Second
	default:
		return 86400 * time.Second
	}
}
