package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/AgentOS/scriptbox/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability/builtin"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/config"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/sandbox"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// Server wraps the HTTP server and the engine behind it
type Server struct {
	router  *gin.Engine
	handler http.Handler
	http    *http.Server
	engine  *sandbox.Engine
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// NewServer creates a server with the builtin capabilities registered
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	logger.Info("Initializing scriptbox server",
		zap.String("addr", cfg.Addr()),
		zap.String("default_tier", cfg.Sandbox.DefaultTier),
		zap.Duration("default_timeout", cfg.Sandbox.DefaultTimeout),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("scriptbox", logger.Logger)

	registry := capability.NewRegistry()
	if err := builtin.Register(registry, builtin.Deps{
		Notifier: builtin.LogNotifier{Logger: logger.Logger},
	}); err != nil {
		return nil, fmt.Errorf("failed to register capabilities: %w", err)
	}
	logger.Info("Capabilities registered", zap.Strings("names", registry.Names()))

	engine, err := sandbox.New(cfg.Engine(), registry,
		sandbox.WithLogger(logger.Logger),
		sandbox.WithMetrics(metrics),
		sandbox.WithTracer(tracer),
	)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, logger, metrics, tracer)
	api.NewHandlers(engine, metrics, Version).Register(router)

	handler := gzhttp.GzipHandler(router)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		handler: handler,
		engine:  engine,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		tracer:  tracer,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func newRouter(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, tracer *tracing.Tracer) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}
	return router
}

// Handler returns the routed handler with response compression
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx ends, then closes the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	httpErr := s.http.Shutdown(ctx)
	if httpErr != nil {
		s.logger.Error("Failed to drain HTTP server", zap.Error(httpErr))
	}
	if err := s.engine.Close(); err != nil {
		s.logger.Error("Failed to close engine", zap.Error(err))
		return errors.Join(httpErr, err)
	}
	s.tracer.Close()

	s.logger.Sync()
	return httpErr
}
