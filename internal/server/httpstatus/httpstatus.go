// Package httpstatus serves the bridge status document and Prometheus
// metrics over HTTP.
package httpstatus

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sharkwire/kbbridge/bridge"
	"github.com/sharkwire/kbbridge/internal/status"
	"github.com/sharkwire/kbbridge/internal/version"
	"github.com/sharkwire/kbbridge/link"
)

// Config controls the HTTP listener. An empty address disables it.
type Config struct {
	Addr string `help:"HTTP status and metrics listen address (empty disables)" default:"127.0.0.1:9243" env:"KBBRIDGE_HTTP_ADDR"`
}

type Server struct {
	addr   string
	engine *gin.Engine
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// New builds the HTTP server. gatherer supplies /metrics; a nil gatherer
// serves the default registry.
func New(addr string, b *bridge.Bridge, s *link.Session, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
	})
	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status.Collect(b, s))
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &Server{
		addr:   addr,
		engine: engine,
		srv:    &http.Server{Handler: engine, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("HTTP status listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP status server", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
