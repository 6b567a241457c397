package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/geo"
	"github.com/richardliu001/location-service/internal/repo"
	"github.com/richardliu001/location-service/internal/repo/repotest"
	"github.com/richardliu001/location-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubResolver map[string]geo.Coordinate

func (s stubResolver) Resolve(_ context.Context, address string) geo.Coordinate { return s[address] }

func newTestRouter(t *testing.T, rl config.RateLimitConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	r := repo.NewRepository(repotest.NewDB(t), nil, log)
	resolver := stubResolver{
		"warehouse": {Latitude: 37.50, Longitude: 127.00},
		"vendor":    {Latitude: 37.00, Longitude: 127.50},
	}
	d := service.NewDistanceService(r, nil, log)
	return NewRouter(Services{
		Sites:        service.NewSiteService(r, resolver, d, log),
		Counterparts: service.NewCounterpartService(r, resolver, d, log),
		Distances:    d,
	}, rl, log)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

var generous = config.RateLimitConfig{RPS: 1000, Burst: 1000}

func TestSiteAndDistanceEndpoints(t *testing.T) {
	h := newTestRouter(t, generous)

	w, site := do(t, h, http.MethodPost, "/v1/sites", gin.H{"name": "Incheon", "kind": "WAREHOUSE", "address": "warehouse"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "WH-001", site["code"])

	w, cp := do(t, h, http.MethodPost, "/v1/counterparts", gin.H{"name": "Acme", "address": "vendor", "ceo_name": "Kim"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "AGC-001", cp["code"])
	assert.Equal(t, "Kim", cp["ceo_name"])

	path := fmt.Sprintf("/v1/distances/sites/%v/counterparts/%v", site["id"], cp["id"])
	w, dist := do(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "71.06", dist["distance_km"])

	w, all := do(t, h, http.MethodGet, fmt.Sprintf("/v1/sites/%v/distances", site["id"]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, all["counterparts"], 1)
	assert.Len(t, all["sites"], 0)

	w, sum := do(t, h, http.MethodPost, "/v1/admin/distances/recalculate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, sum["pairs"])
	assert.Equal(t, 0.0, sum["failed"])

	w, _ = do(t, h, http.MethodGet, "/v1/sites?kind=WAREHOUSE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestSiteLifecycleEndpoints(t *testing.T) {
	h := newTestRouter(t, generous)

	w, site := do(t, h, http.MethodPost, "/v1/sites", gin.H{"name": "F1", "kind": "FACTORY"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := site["id"]

	w, updated := do(t, h, http.MethodPatch, fmt.Sprintf("/v1/sites/%v", id), gin.H{"name": "F1 east"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "F1 east", updated["name"])
	assert.Equal(t, 1.0, updated["version"])

	w, deactivated := do(t, h, http.MethodPost, fmt.Sprintf("/v1/sites/%v/deactivate", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INACTIVE", deactivated["status"])

	w, _ = do(t, h, http.MethodPatch, fmt.Sprintf("/v1/sites/%v", id), gin.H{"status": "ACTIVE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newTestRouter(t, generous)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown site", http.MethodGet, "/v1/sites/99", nil, http.StatusNotFound},
		{"unknown counterpart", http.MethodPost, "/v1/counterparts/99/deactivate", nil, http.StatusNotFound},
		{"unknown pair", http.MethodGet, "/v1/distances/sites/1/counterparts/2", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/v1/sites/abc", nil, http.StatusBadRequest},
		{"bad kind", http.MethodPost, "/v1/sites", gin.H{"name": "x", "kind": "SHOP"}, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/v1/counterparts", gin.H{"address": "vendor"}, http.StatusBadRequest},
		{"bad kind filter", http.MethodGet, "/v1/sites?kind=SHOP", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := do(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("update: %w", repo.ErrVersionConflict)))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("site 1: %w", service.ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrInvalidInput))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(t, config.RateLimitConfig{RPS: 1, Burst: 1})

	w, _ := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
