package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dominica-news/feedback/pkg/errors"
)

func TestProbe_CheckEndpoint(t *testing.T) {
	var gotMethod, gotCacheControl string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCacheControl = r.Header.Get("Cache-Control")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewProbe(DefaultConfig(server.URL))
	result := probe.CheckEndpoint(context.Background(), "/api/v1/articles")

	assert.True(t, result.Healthy)
	assert.Empty(t, result.Error)
	assert.Equal(t, "/api/v1/articles", result.Endpoint)
	assert.Equal(t, http.MethodHead, gotMethod)
	assert.Equal(t, "no-cache", gotCacheControl)
	assert.Greater(t, result.Latency, time.Duration(0))
}

func TestProbe_ServerErrorIsUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	probe := NewProbe(DefaultConfig(server.URL))
	result := probe.CheckEndpoint(context.Background(), "/api/v1/articles")

	assert.False(t, result.Healthy)
	assert.Contains(t, result.Error, "500")
}

func TestProbe_ClientErrorStatusIsReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	// 4xx means the backend answered; the endpoint is reachable
	probe := NewProbe(DefaultConfig(server.URL))
	result := probe.CheckEndpoint(context.Background(), "/api/v1/users/me")

	assert.True(t, result.Healthy)
}

func TestProbe_UnreachableBackend(t *testing.T) {
	config := DefaultConfig("http://127.0.0.1:1")
	config.RequestTimeout = 500 * time.Millisecond
	probe := NewProbe(config)

	result := probe.CheckEndpoint(context.Background(), "/api/v1/articles")
	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.Error)
}

func TestProbe_CacheServesFreshResults(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := DefaultConfig(server.URL)
	config.CacheTTL = 200 * time.Millisecond
	probe := NewProbe(config)

	first := probe.CheckEndpoint(context.Background(), "/api/v1/articles")
	second := probe.CheckEndpoint(context.Background(), "/api/v1/articles")

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, first.Timestamp, second.Timestamp)

	time.Sleep(250 * time.Millisecond)
	probe.CheckEndpoint(context.Background(), "/api/v1/articles")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestProbe_InvalidateCache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewProbe(DefaultConfig(server.URL))
	probe.CheckEndpoint(context.Background(), "/api/v1/articles")
	probe.InvalidateCache()
	probe.CheckEndpoint(context.Background(), "/api/v1/articles")

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestProbe_CheckEndpointsPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewProbe(DefaultConfig(server.URL))
	endpoints := []string{"/api/v1/articles", "/api/v1/categories", "/api/v1/authors"}
	results := probe.CheckEndpoints(context.Background(), endpoints)

	require.Len(t, results, 3)
	for i, endpoint := range endpoints {
		assert.Equal(t, endpoint, results[i].Endpoint)
		assert.True(t, results[i].Healthy)
	}
}

func TestProbe_OverallThreshold(t *testing.T) {
	// One of the four critical endpoints fails; 3/4 = 0.75 still passes
	var mu sync.Mutex
	failing := map[string]bool{"/api/v1/users/me": true}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := failing[r.URL.Path]
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewProbe(DefaultConfig(server.URL))
	overall := probe.Overall(context.Background())

	assert.True(t, overall.IsHealthy)
	assert.Equal(t, 3, overall.HealthyCount)
	assert.Equal(t, 4, overall.TotalCount)
	require.Len(t, overall.Endpoints, 4)

	// A second failure drops the ratio below the threshold
	mu.Lock()
	failing["/api/v1/authors"] = true
	mu.Unlock()
	probe.InvalidateCache()

	overall = probe.Overall(context.Background())
	assert.False(t, overall.IsHealthy)
	assert.Equal(t, 2, overall.HealthyCount)
}

func TestProbe_StartMonitoring(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewProbe(DefaultConfig(server.URL))

	results := make(chan OverallHealth, 8)
	stop := probe.StartMonitoring(30*time.Millisecond, func(h OverallHealth) {
		select {
		case results <- h:
		default:
		}
	})

	select {
	case h := <-results:
		assert.True(t, h.IsHealthy)
	case <-time.After(time.Second):
		t.Fatal("no monitoring result before timeout")
	}

	stop()
	time.Sleep(60 * time.Millisecond)
	drained := len(results)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, len(results), drained+1)
}

func TestProbe_ObserverSeesFreshResultsOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var endpoints []string
	var verdicts []bool
	config := DefaultConfig(server.URL)
	config.Observer = func(endpoint string, latency time.Duration, healthy bool) {
		endpoints = append(endpoints, endpoint)
		verdicts = append(verdicts, healthy)
	}
	probe := NewProbe(config)

	probe.CheckEndpoint(context.Background(), "/api/v1/articles")
	// Served from cache, so the observer must not fire again
	probe.CheckEndpoint(context.Background(), "/api/v1/articles")

	require.Len(t, endpoints, 1)
	assert.Equal(t, "/api/v1/articles", endpoints[0])
	assert.True(t, verdicts[0])
}

func TestOverallHealth_Err(t *testing.T) {
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()

	probe := NewProbe(DefaultConfig(okServer.URL))
	require.NoError(t, probe.Overall(context.Background()).Err())

	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badServer.Close()

	probe = NewProbe(DefaultConfig(badServer.URL))
	err := probe.Overall(context.Background()).Err()
	require.Error(t, err)
	assert.Equal(t, "PROBE_ERROR", apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "/api/v1/")
}
