package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ratefeed/internal/cache"
	"ratefeed/internal/registry"
	"ratefeed/internal/resolver"
	"ratefeed/internal/service"
)

type stubPricer struct {
	name  string
	price float64
	err   error
}

func (s *stubPricer) Name() string { return s.name }

func (s *stubPricer) CurrentPrice(context.Context, string, string) (float64, error) {
	return s.price, s.err
}

func newTestAPI(sources ...*stubPricer) *api {
	reg := registry.New(nil)
	for _, s := range sources {
		reg.Add(s.name, s, -1)
	}
	store := cache.New(0)
	res := resolver.New(reg, store, resolver.Config{}, nil, nil)
	return &api{svc: service.New(reg, store, res, nil), logger: slog.Default()}
}

func doRequest(t *testing.T, a *api, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.routes(http.NotFoundHandler()).ServeHTTP(rec, req)
	return rec
}

func TestHandlePrice(t *testing.T) {
	a := newTestAPI(&stubPricer{name: "a", price: 50000})

	rec := doRequest(t, a, http.MethodGet, "/api/v1/price/btc?currency=usd", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got priceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "BTC", got.Asset)
	require.Equal(t, "USD", got.Currency)
	require.Equal(t, 50000.0, got.Price)
}

func TestHandlePriceExhaustionIsBadGateway(t *testing.T) {
	a := newTestAPI(&stubPricer{name: "a", err: errors.New("down")})

	rec := doRequest(t, a, http.MethodGet, "/api/v1/price/btc", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "no source could answer")
}

func TestHandleCompare(t *testing.T) {
	a := newTestAPI(
		&stubPricer{name: "a", price: 100},
		&stubPricer{name: "b", price: 102},
	)

	rec := doRequest(t, a, http.MethodGet, "/api/v1/price/btc/compare", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got resolver.Comparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Sources, 2)
	require.Equal(t, 101.0, *got.Average)
}

func TestHandlePriorityValidation(t *testing.T) {
	a := newTestAPI(&stubPricer{name: "a", price: 1}, &stubPricer{name: "b", price: 2})

	rec := doRequest(t, a, http.MethodPut, "/api/v1/sources/priority", `{"order":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, a, http.MethodPut, "/api/v1/sources/priority", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, a, http.MethodPut, "/api/v1/sources/priority", `{"order":["b","a"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got priorityRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, []string{"b", "a"}, got.Order)
}

func TestHandleClearCache(t *testing.T) {
	a := newTestAPI(&stubPricer{name: "a", price: 1})

	rec := doRequest(t, a, http.MethodDelete, "/api/v1/cache", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthz(t *testing.T) {
	a := newTestAPI()

	rec := doRequest(t, a, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestHandleStatus(t *testing.T) {
	a := newTestAPI(&stubPricer{name: "a", price: 1})

	rec := doRequest(t, a, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Sources  map[string]service.Status `json:"sources"`
		Priority []string                  `json:"priority"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, []string{"a"}, got.Priority)
	require.True(t, got.Sources["a"].Available)
}
