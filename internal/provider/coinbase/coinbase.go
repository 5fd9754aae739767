package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider/ratelimit"
)

type Config struct {
	Name    string // display name, default: Coinbase
	BaseURL string // default: https://api.coinbase.com
}

// Adapter exposes the Coinbase public spot endpoint. It can only
// answer current prices and an availability probe; everything else is
// left to sources with broader APIs.
type Adapter struct {
	cfg  Config
	http *httpx.Client
	gate *ratelimit.Gate
}

func New(cfg Config, client *httpx.Client, gate *ratelimit.Gate) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Coinbase"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coinbase.com"
	}
	return &Adapter{cfg: cfg, http: client, gate: gate}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) CurrentPrice(ctx context.Context, asset, currency string) (float64, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return 0, err
	}

	var out struct {
		Data struct {
			Amount   string `json:"amount"`
			Base     string `json:"base"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/v2/prices/%s-%s/spot", strings.ToUpper(asset), strings.ToUpper(currency))
	if err := a.getJSON(ctx, path, &out); err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(out.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: bad amount %q: %w", out.Data.Amount, err)
	}
	return price, nil
}

func (a *Adapter) CheckAvailability(ctx context.Context) error {
	var out struct {
		Data struct {
			ISO string `json:"iso"`
		} `json:"data"`
	}
	return a.getJSON(ctx, "/v2/time", &out)
}

func (a *Adapter) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("coinbase: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("coinbase: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coinbase: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coinbase: decode response: %w", err)
	}
	return nil
}
