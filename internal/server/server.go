// Package server exposes the read-only administration surface for the
// cache subsystem: health, the metrics snapshot, and a Prometheus
// endpoint. It never mutates cache state.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Tanner-Eischen/LeafWise-sub002/internal/cache"
)

// Server wraps the gin engine serving the admin endpoints.
type Server struct {
	engine *gin.Engine
	cache  *cache.Service
	log    *logrus.Logger
}

// New builds the admin server over a cache service.
func New(svc *cache.Service, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		cache:  svc,
		log:    log,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(newCacheCollector(svc))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/cache/stats", s.handleStats)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if err := s.cache.Ping(c.Request.Context()); err != nil {
		// L2 down degrades the cache, it does not take the service down.
		status = "degraded"
		s.log.WithError(err).Warn("l2 unreachable")
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Stats(c.Request.Context()))
}
