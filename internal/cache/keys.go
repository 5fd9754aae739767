package cache

import (
	"fmt"
	"strings"
)

// Key builders for the operations that write through to the store.
// Symbols and currencies are uppercased so "btc"/"BTC" share an entry.

func PriceKey(asset, currency string) string {
	return fmt.Sprintf("price_%s_%s", strings.ToUpper(asset), strings.ToUpper(currency))
}

func HistoricalKey(asset, currency, period, interval string) string {
	return fmt.Sprintf("historical_%s_%s_%s_%s",
		strings.ToUpper(asset), strings.ToUpper(currency), strings.ToUpper(period), strings.ToLower(interval))
}

func ListingKey(limit int, includeMetadata bool) string {
	return fmt.Sprintf("available_cryptos_%d_%t", limit, includeMetadata)
}

func DetailKey(asset, currency string) string {
	return fmt.Sprintf("crypto_details_%s_%s", strings.ToUpper(asset), strings.ToUpper(currency))
}

func MarketInfoKey(limit int, currency string) string {
	return fmt.Sprintf("market_info_%d_%s", limit, strings.ToUpper(currency))
}
