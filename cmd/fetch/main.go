package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ratefeed/internal/app"
	"ratefeed/internal/config"
	"ratefeed/internal/provider"
	"ratefeed/internal/resolver"
	"ratefeed/pkg/logger"
)

// fetch is a one-shot CLI: resolve a price, a cross-source comparison
// or a historical series and print it as JSON.
func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		asset      = flag.String("asset", "", "asset symbol, e.g. BTC (required)")
		currency   = flag.String("currency", "USD", "quote currency")
		source     = flag.String("source", "", "preferred source for this call")
		compare    = flag.Bool("compare", false, "query all sources and print statistics")
		history    = flag.Bool("history", false, "fetch a historical series instead of a spot price")
		period     = flag.String("period", "1D", "history period: 1D, 1W, 1M, 3M, 1Y")
		timeout    = flag.Duration("timeout", 30*time.Second, "overall deadline")
	)
	flag.Parse()

	if *asset == "" {
		fmt.Fprintln(os.Stderr, "usage: fetch -asset BTC [-currency USD] [-compare|-history]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("warn", cfg.Logger.Format)
	svc := app.Build(cfg, log, nil)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opts := resolver.Options{PreferredSource: *source}

	var out any
	switch {
	case *compare:
		out, err = svc.ComparePrices(ctx, *asset, *currency, opts)
	case *history:
		out, err = svc.GetHistoricalData(ctx, *asset, *currency, provider.HistoricalRange{Period: *period}, opts)
	default:
		var price float64
		price, err = svc.GetCurrentPrice(ctx, *asset, *currency, opts)
		out = map[string]any{"asset": *asset, "currency": *currency, "price": price}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
