// Package ops exposes the read-only HTTP surface of the compression service:
// health and readiness probes, a JSON statistics snapshot, and Prometheus
// metrics. It never touches the wire protocol.
package ops

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/strydlabs/stryd/internal/observability"
	"github.com/strydlabs/stryd/internal/service"
)

// Snapshotter is the piece of the wire server the ops surface reads from.
type Snapshotter interface {
	Snapshot() service.Snapshot
}

type Server struct {
	ID      string
	Addr    string
	Started time.Time

	state  Snapshotter
	router *gin.Engine
}

func New(id, addr string, corsOrigins []string, state Snapshotter) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:      id,
		Addr:    addr,
		Started: time.Now(),
		state:   state,
		router:  r,
	}
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"service": s.ID,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.Started).String(),
			"service": s.ID,
		})
	})

	s.router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.state.Snapshot())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	return s.router.Run(s.Addr)
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
