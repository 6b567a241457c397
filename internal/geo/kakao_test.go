package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T, handler http.HandlerFunc, key string) *KakaoResolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewKakaoResolver(key, 0, zap.NewNop().Sugar(), WithBaseURL(srv.URL), WithRateLimit(100))
}

func TestKakaoResolver_AddressSearch(t *testing.T) {
	var auth, query string
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		auth = req.Header.Get("Authorization")
		query = req.URL.Query().Get("query")
		assert.Equal(t, addressSearchPath, req.URL.Path)
		_, _ = w.Write([]byte(`{"documents":[{"x":"127.0276","y":"37.4979"}]}`))
	}, "secret")

	got := r.Resolve(context.Background(), "서울 강남구 강남대로 396 (강남역)")

	assert.Equal(t, Coordinate{Latitude: 37.4979, Longitude: 127.0276}, got)
	assert.Equal(t, "KakaoAK secret", auth)
	assert.Equal(t, "서울 강남구 강남대로 396", query)
}

func TestKakaoResolver_FallsBackToKeywordSearch(t *testing.T) {
	var calls int32
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		if req.URL.Path == addressSearchPath {
			_, _ = w.Write([]byte(`{"documents":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"documents":[{"x":"129.0756","y":"35.1796"}]}`))
	}, "KakaoAK secret")

	got := r.Resolve(context.Background(), "부산역")

	assert.Equal(t, Coordinate{Latitude: 35.1796, Longitude: 129.0756}, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestKakaoResolver_FailuresReturnSentinel(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}, "secret")

	assert.Equal(t, Unresolved, r.Resolve(context.Background(), "Seoul"))
}

func TestKakaoResolver_RejectsUnsafeInput(t *testing.T) {
	var calls int32
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, "secret")

	assert.Equal(t, Unresolved, r.Resolve(context.Background(), "'; DROP TABLE site; --"))
	assert.Equal(t, Unresolved, r.Resolve(context.Background(), "   "))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestKakaoResolver_MissingKey(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected without an api key")
	}, "")

	assert.Equal(t, Unresolved, r.Resolve(context.Background(), "Seoul"))
}

func TestNopResolver(t *testing.T) {
	assert.Equal(t, Unresolved, NopResolver{}.Resolve(context.Background(), "anything"))
}
