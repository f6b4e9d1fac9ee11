// Package testhelpers provides fake upstreams and fixture files shared by package tests.
package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/kjstillabower/company-portal/internal/geo"
	"github.com/kjstillabower/company-portal/internal/models"
)

// CatalogServer is a fake rating-sorted product listing. Product ids run 1..N in
// rank order, so a correct merge yields ids in ascending order.
type CatalogServer struct {
	*httptest.Server

	// FailSkip is the page offset answered with FailStatus; negative disables.
	FailSkip   int
	FailStatus int

	calls atomic.Int64
}

// NewCatalogServer starts a CatalogServer and closes it when t finishes.
func NewCatalogServer(t testing.TB) *CatalogServer {
	t.Helper()
	cs := &CatalogServer{FailSkip: -1, FailStatus: http.StatusBadGateway}
	cs.Server = httptest.NewServer(http.HandlerFunc(cs.serve))
	t.Cleanup(cs.Close)
	return cs
}

// Calls reports how many page requests reached the server.
func (cs *CatalogServer) Calls() int64 { return cs.calls.Load() }

func (cs *CatalogServer) serve(w http.ResponseWriter, r *http.Request) {
	cs.calls.Add(1)
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	skip, _ := strconv.Atoi(q.Get("skip"))
	if cs.FailSkip >= 0 && skip == cs.FailSkip {
		http.Error(w, "upstream failure", cs.FailStatus)
		return
	}
	products := make([]map[string]any, 0, limit)
	for i := 0; i < limit; i++ {
		id := skip + i + 1
		products = append(products, map[string]any{
			"id":     id,
			"title":  fmt.Sprintf("Product %d", id),
			"rating": 5 - float64(id)/100,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"products": products, "skip": skip, "limit": limit})
}

// WeatherServer is a fake current-weather endpoint answering with a fixed status and body.
type WeatherServer struct {
	*httptest.Server

	Status int
	Body   string

	lastQuery atomic.Value
}

// NewWeatherServer starts a WeatherServer answering 200 with a clear-sky report for Ankara.
func NewWeatherServer(t testing.TB) *WeatherServer {
	t.Helper()
	ws := &WeatherServer{
		Status: http.StatusOK,
		Body:   `{"name":"Ankara","main":{"temp":21.5},"weather":[{"main":"Clear","description":"clear sky"}]}`,
	}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.lastQuery.Store(r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ws.Status)
		_, _ = w.Write([]byte(ws.Body))
	}))
	t.Cleanup(ws.Close)
	return ws
}

// LastQuery returns the raw query string of the most recent request, or "".
func (ws *WeatherServer) LastQuery() string {
	q, _ := ws.lastQuery.Load().(string)
	return q
}

// FixedLocator resolves every address to Coords, or fails with Err when set.
type FixedLocator struct {
	Coords models.Coordinates
	Err    error
}

func (l FixedLocator) Locate(netip.Addr) (models.Coordinates, error) {
	if l.Err != nil {
		return models.Coordinates{}, l.Err
	}
	return l.Coords, nil
}

var _ geo.Locator = FixedLocator{}
