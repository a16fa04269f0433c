package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanner-Eischen/LeafWise-sub002/internal/cache"
)

func setupServer(t *testing.T) (*Server, *cache.Service, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := cache.NewService(client, &cache.ServiceConfig{
		L1MaxSize:   100,
		L2KeyPrefix: "leafwise:",
		L2Timeout:   time.Second,
	}, nil)

	srv := New(svc, nil)

	t.Cleanup(func() {
		_ = svc.Close()
		_ = client.Close()
		mr.Close()
	})
	return srv, svc, mr
}

func doRequest(srv *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _ := setupServer(t)

	rec := doRequest(srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthz_L2Down(t *testing.T) {
	srv, _, mr := setupServer(t)
	mr.Close()

	// A dead L2 degrades the cache but not the service.
	rec := doRequest(srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rec.Body.String())
}

func TestCacheStats(t *testing.T) {
	srv, svc, _ := setupServer(t)
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "cp:1", "plan", cache.TypeCarePlan))
	var got string
	require.True(t, svc.Get(ctx, "cp:1", cache.TypeCarePlan, &got))
	require.False(t, svc.Get(ctx, "cp:2", cache.TypeCarePlan, &got))

	rec := doRequest(srv, "/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap cache.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.InDelta(t, 0.5, snap.HitRate, 1e-9)
	assert.Equal(t, 1, snap.L1Size)
	assert.Equal(t, 100, snap.L1Capacity)
}

func TestPrometheusMetrics(t *testing.T) {
	srv, svc, _ := setupServer(t)
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "cp:1", "plan", cache.TypeCarePlan))
	var got string
	require.True(t, svc.Get(ctx, "cp:1", cache.TypeCarePlan, &got))

	rec := doRequest(srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "leafwise_cache_hits_total 1")
	assert.Contains(t, body, "leafwise_cache_misses_total 0")
	assert.Contains(t, body, "leafwise_cache_l1_entries 1")
	assert.Contains(t, body, `leafwise_cache_type_hits_total{type="care_plan"} 1`)
}
