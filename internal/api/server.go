package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dominica-news/feedback/internal/report"
	"github.com/dominica-news/feedback/internal/reportstore"
	"github.com/dominica-news/feedback/pkg/config"
	"github.com/dominica-news/feedback/pkg/logging"
	"github.com/dominica-news/feedback/pkg/metrics"
)

// Server is the daemon side of the feedback pipeline: it receives
// error reports and serves the lightweight endpoints the health probe
// targets.
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	repo    *reportstore.Repository
	cache   *reportstore.Cache
}

// NewServer wires the API server. repo and cache may be nil; the
// server then runs in degraded mode where reports are only logged.
func NewServer(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics, repo *reportstore.Repository, cache *reportstore.Cache) *Server {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Server{
		config:  cfg,
		logger:  logger,
		metrics: m,
		repo:    repo,
		cache:   cache,
	}
}

// Routes builds the gin engine.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))
	router.Use(CORSMiddleware(&s.config.Server))
	if s.metrics != nil {
		router.Use(s.metrics.GinMiddleware())
		router.GET("/metrics", s.metrics.Handler())
	}

	router.GET("/health", s.handleHealth)
	router.GET("/health/live", s.handleLiveness)
	router.GET("/health/ready", s.handleReadiness)

	// Probe targets. HEAD is what the client-side probe sends; GET is
	// answered too so the endpoints are inspectable by hand.
	probeTargets := router.Group("/api/v1")
	for _, path := range []string{"/articles", "/categories", "/authors", "/users/me"} {
		probeTargets.HEAD(path, s.handleProbeTarget)
		probeTargets.GET(path, s.handleProbeTarget)
	}

	authed := router.Group("/api", AuthMiddleware(&s.config.Auth, s.logger))
	authed.POST("/errors/report", s.handleReport)
	authed.GET("/errors/recent", s.handleRecent)
	authed.GET("/errors/stats", s.handleStats)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if s.repo != nil {
		if err := s.repo.Health(ctx); err != nil {
			checks["database"] = gin.H{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["database"] = gin.H{"status": "healthy"}
		}
	}
	if s.cache != nil {
		if err := s.cache.Health(ctx); err != nil {
			checks["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["redis"] = gin.H{"status": "healthy"}
		}
	}

	status := http.StatusOK
	verdict := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		verdict = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    verdict,
		"timestamp": time.Now(),
		"checks":    checks,
	})
}

func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

func (s *Server) handleReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ready := true
	if s.repo != nil && s.repo.Health(ctx) != nil {
		ready = false
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":     ready,
		"timestamp": time.Now(),
	})
}

// handleProbeTarget answers the probe's existence checks cheaply. When
// a report store is wired its database must be reachable for the
// endpoint to count as healthy, which lets the client-side probe see
// backend degradation.
func (s *Server) handleProbeTarget(c *gin.Context) {
	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.Health(ctx); err != nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleReport(c *gin.Context) {
	var payload report.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.countFailure("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed report payload"})
		return
	}
	if payload.Message == "" {
		s.countFailure("empty_message")
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if payload.ErrorID == "" {
		payload.ErrorID = report.NewErrorID()
	}

	if userID, ok := c.Get("user_id"); ok && payload.UserID == "" {
		payload.UserID = userID.(string)
	}

	contextJSON, err := json.Marshal(payload.Context)
	if err != nil {
		contextJSON = []byte("{}")
	}

	stored := &reportstore.StoredReport{
		ErrorID:   payload.ErrorID,
		Message:   payload.Message,
		Stack:     payload.Stack,
		UserAgent: payload.UserAgent,
		URL:       payload.URL,
		UserID:    payload.UserID,
		Context:   contextJSON,
	}
	if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
		stored.CreatedAt = ts
	}

	if s.metrics != nil && s.metrics.ReportsReceivedTotal != nil {
		category := "unknown"
		if v, ok := payload.Context["category"].(string); ok && v != "" {
			category = v
		}
		s.metrics.ReportsReceivedTotal.WithLabelValues(category).Inc()
	}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.repo.Save(ctx, stored); err != nil {
			s.logger.Error("Failed to persist error report",
				"error_id", stored.ErrorID,
				"error", err.Error(),
			)
			s.countFailure("persist")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report"})
			return
		}
		if s.metrics != nil && s.metrics.ReportsPersistedTotal != nil {
			s.metrics.ReportsPersistedTotal.Inc()
		}
	} else {
		s.logger.Warn("Report store unavailable, logging report only",
			"error_id", stored.ErrorID,
			"message", stored.Message,
		)
	}

	if s.cache != nil {
		// Best effort; the cache ring is advisory
		if err := s.cache.Record(c.Request.Context(), stored); err != nil {
			s.logger.Warn("Failed to record report in cache",
				"error_id", stored.ErrorID,
				"error", err.Error(),
			)
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"errorId": stored.ErrorID})
}

func (s *Server) handleRecent(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if s.cache != nil {
		if reports, err := s.cache.Recent(ctx, 50); err == nil {
			c.JSON(http.StatusOK, gin.H{"reports": reports, "source": "cache"})
			return
		}
	}
	if s.repo != nil {
		reports, err := s.repo.ListRecent(ctx, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports, "source": "database"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": []reportstore.StoredReport{}, "source": "none"})
}

func (s *Server) handleStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats := gin.H{}

	if s.cache != nil {
		if today, err := s.cache.CountToday(ctx); err == nil {
			stats["reports_today"] = today
		}
	}
	if s.repo != nil {
		if last24h, err := s.repo.CountSince(ctx, time.Now().Add(-24*time.Hour)); err == nil {
			stats["reports_last_24h"] = last24h
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) countFailure(reason string) {
	if s.metrics != nil && s.metrics.ReportsFailedTotal != nil {
		s.metrics.ReportsFailedTotal.WithLabelValues(reason).Inc()
	}
}
