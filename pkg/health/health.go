package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/dominica-news/feedback/pkg/errors"
	"github.com/dominica-news/feedback/pkg/logging"
)

// EndpointHealth is the outcome of probing one backend endpoint.
type EndpointHealth struct {
	Endpoint  string        `json:"endpoint"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// OverallHealth aggregates a probe pass over the critical endpoint set.
type OverallHealth struct {
	IsHealthy      bool             `json:"is_healthy"`
	HealthyCount   int              `json:"healthy_count"`
	TotalCount     int              `json:"total_count"`
	AverageLatency time.Duration    `json:"average_latency"`
	Timestamp      time.Time        `json:"timestamp"`
	Endpoints      []EndpointHealth `json:"endpoints"`
}

// Err converts an unhealthy verdict into a typed probe error naming the
// first failing endpoint. Nil when the verdict is healthy.
func (h OverallHealth) Err() error {
	if h.IsHealthy {
		return nil
	}
	for _, ep := range h.Endpoints {
		if !ep.Healthy {
			return apperrors.NewProbeError(ep.Endpoint, fmt.Sprintf("%s unhealthy: %s", ep.Endpoint, ep.Error))
		}
	}
	return apperrors.NewProbeError("", "no endpoints probed")
}

// Config tunes the probe.
type Config struct {
	// BaseURL is prefixed to every probed endpoint path
	BaseURL string
	// RequestTimeout bounds a single HEAD probe
	RequestTimeout time.Duration
	// CacheTTL is how long a per-endpoint result stays fresh
	CacheTTL time.Duration
	// CriticalEndpoints is the fixed set OverallHealth probes
	CriticalEndpoints []string
	// HealthyRatio is the fraction of critical endpoints that must be
	// healthy for the aggregate verdict, inclusive
	HealthyRatio float64
	// Observer, when set, sees every fresh probe result. Cached hits
	// are not observed. Set before the probe is used.
	Observer func(endpoint string, latency time.Duration, healthy bool)
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RequestTimeout: 15 * time.Second,
		CacheTTL:       30 * time.Second,
		CriticalEndpoints: []string{
			"/api/v1/articles",
			"/api/v1/categories",
			"/api/v1/authors",
			"/api/v1/users/me",
		},
		HealthyRatio: 0.75,
	}
}

// Probe checks backend endpoint reachability and latency with a short
// per-endpoint cache so bursts of callers do not hammer the backend.
type Probe struct {
	config Config
	client *http.Client
	logger *logging.Logger

	mu    sync.Mutex
	cache map[string]EndpointHealth
}

// NewProbe creates a probe.
func NewProbe(config Config) *Probe {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 15 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 30 * time.Second
	}
	if config.HealthyRatio <= 0 {
		config.HealthyRatio = 0.75
	}

	return &Probe{
		config: config,
		client: &http.Client{},
		logger: logging.GetLogger(),
		cache:  make(map[string]EndpointHealth),
	}
}

// CheckEndpoint probes one endpoint path, serving a cached result while
// it is fresh. A transport failure or timeout, or a status of 500 and
// above, marks the endpoint unhealthy.
func (p *Probe) CheckEndpoint(ctx context.Context, endpoint string) EndpointHealth {
	p.mu.Lock()
	if cached, ok := p.cache[endpoint]; ok && time.Since(cached.Timestamp) < p.config.CacheTTL {
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	result := p.probe(ctx, endpoint)

	p.mu.Lock()
	p.cache[endpoint] = result
	p.mu.Unlock()

	if p.config.Observer != nil {
		p.config.Observer(endpoint, result.Latency, result.Healthy)
	}
	p.logger.LogProbeEvent(ctx, endpoint, result.Healthy, result.Latency, nil)
	return result
}

// CheckEndpoints probes several endpoints concurrently. Results come
// back in the same order as the input list.
func (p *Probe) CheckEndpoints(ctx context.Context, endpoints []string) []EndpointHealth {
	results := make([]EndpointHealth, len(endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			results[i] = p.CheckEndpoint(ctx, endpoint)
		}(i, endpoint)
	}
	wg.Wait()

	return results
}

// Overall probes the critical endpoint set and aggregates a verdict:
// healthy when the healthy fraction meets the configured ratio.
func (p *Probe) Overall(ctx context.Context) OverallHealth {
	results := p.CheckEndpoints(ctx, p.config.CriticalEndpoints)

	healthy := 0
	var totalLatency time.Duration
	for _, r := range results {
		if r.Healthy {
			healthy++
		}
		totalLatency += r.Latency
	}

	overall := OverallHealth{
		HealthyCount: healthy,
		TotalCount:   len(results),
		Timestamp:    time.Now(),
		Endpoints:    results,
	}
	if len(results) > 0 {
		overall.IsHealthy = float64(healthy)/float64(len(results)) >= p.config.HealthyRatio
		overall.AverageLatency = totalLatency / time.Duration(len(results))
	}

	return overall
}

// StartMonitoring polls Overall on a fixed interval and invokes
// onChange with every result. The returned stop function cancels the
// poller; callers must invoke it to avoid leaking the timer.
func (p *Probe) StartMonitoring(interval time.Duration, onChange func(OverallHealth)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				onChange(p.Overall(ctx))
			}
		}
	}()

	return cancel
}

// InvalidateCache drops all cached endpoint results.
func (p *Probe) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]EndpointHealth)
}

func (p *Probe) probe(ctx context.Context, endpoint string) EndpointHealth {
	ctx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	result := EndpointHealth{
		Endpoint:  endpoint,
		Timestamp: time.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.config.BaseURL+endpoint, nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := p.client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		result.Error = fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
		return result
	}

	result.Healthy = true
	return result
}
