package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"ratefeed/internal/provider"
	"ratefeed/internal/resolver"
	"ratefeed/internal/service"
)

type api struct {
	svc    *service.Service
	logger *slog.Logger
}

func (a *api) routes(metricsHandler http.Handler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/price/{asset}", a.handlePrice).Methods(http.MethodGet)
	v1.HandleFunc("/price/{asset}/compare", a.handleCompare).Methods(http.MethodGet)
	v1.HandleFunc("/history/{asset}", a.handleHistory).Methods(http.MethodGet)
	v1.HandleFunc("/assets", a.handleAssets).Methods(http.MethodGet)
	v1.HandleFunc("/assets/{asset}", a.handleAssetDetails).Methods(http.MethodGet)
	v1.HandleFunc("/market", a.handleMarket).Methods(http.MethodGet)
	v1.HandleFunc("/status", a.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/sources/priority", a.handlePriority).Methods(http.MethodPut)
	v1.HandleFunc("/cache", a.handleClearCache).Methods(http.MethodDelete)
	return r
}

// callOptions reads the per-call modifiers shared by the read endpoints.
func callOptions(r *http.Request) resolver.Options {
	q := r.URL.Query()
	opts := resolver.Options{
		PreferredSource: q.Get("source"),
		ForceRefresh:    parseBool(q.Get("refresh")),
	}
	if ms, err := strconv.Atoi(q.Get("timeout_ms")); err == nil && ms > 0 {
		opts.Timeout = time.Duration(ms) * time.Millisecond
	}
	return opts
}

type priceResponse struct {
	Asset    string  `json:"asset"`
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
}

func (a *api) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]
	currency := currencyParam(r)

	price, err := a.svc.GetCurrentPrice(r.Context(), asset, currency, callOptions(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Asset:    strings.ToUpper(asset),
		Currency: currency,
		Price:    price,
	})
}

func (a *api) handleCompare(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]
	currency := currencyParam(r)

	cmp, err := a.svc.ComparePrices(r.Context(), asset, currency, callOptions(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

type historyResponse struct {
	Asset    string                `json:"asset"`
	Currency string                `json:"currency"`
	Period   string                `json:"period"`
	Points   []provider.PricePoint `json:"points"`
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]
	currency := currencyParam(r)
	q := r.URL.Query()

	rng := provider.HistoricalRange{
		Period:   q.Get("period"),
		Interval: q.Get("interval"),
	}
	if rng.Period == "" {
		rng.Period = "1D"
	}
	if t, err := time.Parse(time.RFC3339, q.Get("start")); err == nil {
		rng.Start = t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("end")); err == nil {
		rng.End = t
	}

	points, err := a.svc.GetHistoricalData(r.Context(), asset, currency, rng, callOptions(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Asset:    strings.ToUpper(asset),
		Currency: currency,
		Period:   rng.Period,
		Points:   points,
	})
}

func (a *api) handleAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := provider.ListOptions{IncludeMetadata: parseBool(q.Get("metadata"))}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}

	assets, err := a.svc.GetAvailableCryptos(r.Context(), opts)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (a *api) handleAssetDetails(w http.ResponseWriter, r *http.Request) {
	detail, err := a.svc.GetCryptoDetails(r.Context(), mux.Vars(r)["asset"], currencyParam(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *api) handleMarket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := provider.MarketOptions{Currency: currencyParam(r)}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}

	info, err := a.svc.GetMarketInfo(r.Context(), opts)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sources":  a.svc.CheckAPIStatus(r.Context()),
		"priority": a.svc.Priority(),
	})
}

type priorityRequest struct {
	Order []string `json:"order"`
}

func (a *api) handlePriority(w http.ResponseWriter, r *http.Request) {
	var body priorityRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !a.svc.UpdatePriority(body.Order) {
		http.Error(w, "order cannot be empty", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, priorityRequest{Order: a.svc.Priority()})
}

func (a *api) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	a.svc.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps resolver failures onto status codes: exhaustion is an
// upstream problem, everything else is ours.
func (a *api) writeError(w http.ResponseWriter, err error) {
	var exhausted *resolver.ExhaustedError
	if errors.As(err, &exhausted) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": exhausted.Error()})
		return
	}
	a.logger.Error("request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func currencyParam(r *http.Request) string {
	if cur := r.URL.Query().Get("currency"); cur != "" {
		return strings.ToUpper(cur)
	}
	return "USD"
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
