package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReadyFunc reports extra readiness, like the gateway being connected.
type ReadyFunc func() bool

// Server exposes liveness, readiness and Prometheus metrics.
type Server struct {
	log    zerolog.Logger
	db     Pinger
	ready  ReadyFunc
	engine *gin.Engine
	srv    *http.Server
}

// New builds the server for addr. An empty addr disables listening.
func New(log zerolog.Logger, addr string, db Pinger, ready ReadyFunc) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{log: log.With().Str("component", "http").Logger(), db: db, ready: ready, engine: gin.New()}
	s.routes()
	if addr != "" {
		s.srv = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.Use(requestID(), accessLog(s.log), gin.Recovery())
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/readyz", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
	}
	if s.ready != nil && !s.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "gateway"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Start serves until Shutdown.
func (s *Server) Start() {
	if s.srv == nil {
		s.log.Info().Msg("http disabled")
		return
	}
	s.log.Info().Str("addr", s.srv.Addr).Msg("http listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Msg("http server stopped")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func accessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		} else if status >= http.StatusBadRequest {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", c.Writer.Header().Get(requestIDHeader)).
			Msg("http")
	}
}
