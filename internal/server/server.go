package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/trustcrawl/internal/metrics"
	"github.com/nao1215/trustcrawl/internal/model"
	"github.com/nao1215/trustcrawl/internal/trust"
)

const (
	// DefaultShutdownTimeout bounds the graceful shutdown of Run.
	DefaultShutdownTimeout = 30 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Neighborer answers trust requests. *trust.Service implements it.
type Neighborer interface {
	Neighbors(ctx context.Context, req trust.Request) ([]model.ScoredAddress, error)
}

// Server is the HTTP front end of the trust service.
type Server struct {
	service         Neighborer
	metrics         *metrics.Metrics
	logger          *slog.Logger
	validate        *validator.Validate
	shutdownTimeout time.Duration
	engine          *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a Server answering with service.
func New(service Neighborer, opts ...Option) *Server {
	s := &Server{
		service:         service,
		logger:          slog.Default(),
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(s.requestID(), s.accessLog(), s.recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/_health", s.health)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	graph := s.engine.Group("/graph")
	{
		graph.GET("/neighbors/eth_transfers", s.neighbors(ethTransfersRoute))
		graph.POST("/neighbors/eth_transfers", s.neighbors(ethTransfersRoute))
		graph.GET("/neighbors/:blockchain", s.neighbors(chainRoute))
		graph.POST("/neighbors/:blockchain", s.neighbors(chainRoute))
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
