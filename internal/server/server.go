package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/telchain/backend/internal/broker"
	"github.com/telchain/backend/internal/chain"
	"github.com/telchain/backend/internal/config"
	handlers "github.com/telchain/backend/internal/http"
	"github.com/telchain/backend/internal/logging"
	"github.com/telchain/backend/internal/middleware"
	"github.com/telchain/backend/internal/monitoring"
	"github.com/telchain/backend/internal/tracing"
	"github.com/telchain/backend/internal/tracing/export"
)

// Server holds one hop's runtime: the HTTP server plus the tracing pipeline
// and broker connection it owns.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	recorder *tracing.Recorder
	exporter tracing.Exporter
	broker   *broker.Broker
	router   *gin.Engine
	httpSrv  *http.Server
}

// New builds a server from cfg. The broker connection is established eagerly
// when enabled so a misconfigured hop fails at startup rather than on the
// first message.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer, cfg.Service.Name)

	exporter, err := newExporter(cfg, metrics, logger.Logger)
	if err != nil {
		return nil, err
	}

	recorder := tracing.NewRecorder(tracing.Options{
		Service:       cfg.Service.Name,
		SampleRatio:   cfg.Tracing.SampleRatio,
		BufferSize:    cfg.Tracing.BufferSize,
		BatchSize:     cfg.Tracing.BatchSize,
		FlushInterval: cfg.Tracing.FlushInterval,
		ExportTimeout: cfg.Tracing.ExportTimeout,
		OnDrop:        func() { metrics.SpansDropped.Inc() },
	}, exporter, logger.Logger)

	forwarder := chain.NewForwarder(cfg.HTTP, recorder, metrics, logger.Logger)

	var (
		brk       *broker.Broker
		publisher chain.Publisher
	)
	if cfg.Broker.Enabled {
		brk, err = broker.Connect(cfg.Broker, cfg.Service.Name, recorder, metrics, logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up broker: %w", err)
		}
		publisher = brk
		logger.Info("connected to broker", zap.String("service", cfg.Service.Name))
	}

	orchestrator := chain.New(chain.Options{
		Service:   cfg.Service.Name,
		NextURL:   cfg.NextHop.URL,
		NextQueue: cfg.NextHop.Queue,
		MaxDelay:  cfg.Service.MaxProcessingDelay,
		Forwarder: forwarder,
		Publisher: publisher,
		Logger:    logger.Logger,
	})

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		recorder: recorder,
		exporter: exporter,
		broker:   brk,
	}
	s.router = s.buildRouter(orchestrator)
	return s, nil
}

// newExporter picks the span exporter: OTLP when a collector address is
// configured, otherwise spans go to the structured log. Either way the
// export counter is maintained.
func newExporter(cfg *config.Config, metrics *monitoring.Metrics, logger *zap.Logger) (tracing.Exporter, error) {
	var inner tracing.Exporter
	if cfg.Tracing.OTLPAddr != "" {
		otlp, err := export.NewOTLP(cfg.Tracing.OTLPAddr, cfg.Service.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		inner = otlp
	} else {
		inner = export.NewLog(logger)
	}

	counted := tracing.ExporterFunc(func(ctx context.Context, spans []*tracing.Span) error {
		if err := inner.Export(ctx, spans); err != nil {
			return err
		}
		metrics.SpansExported.Add(float64(len(spans)))
		return nil
	})
	return &closingExporter{Exporter: counted, inner: inner}, nil
}

// closingExporter forwards Close to the wrapped exporter when it has one.
type closingExporter struct {
	tracing.Exporter
	inner tracing.Exporter
}

func (c *closingExporter) Close() error {
	if closer, ok := c.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (s *Server) buildRouter(orchestrator *chain.Orchestrator) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		}))
	}
	router.Use(middleware.Trace(s.recorder, s.logger.Logger))
	router.Use(monitoring.Middleware(s.metrics))

	var brokerReady func() bool
	if s.broker != nil {
		brokerReady = s.broker.Connected
	}
	h := handlers.NewHandlers(s.cfg.Service.Name, orchestrator, s.metrics, s.logger.Logger, brokerReady)

	api := router.Group("/api")
	{
		api.GET("/chain", h.Chain)
		api.GET("/process", h.Process)
		api.GET("/fanout", h.Fanout)
		api.GET("/greet", h.Greet)
		api.GET("/error", h.Error)
	}

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Run starts the consumers and the HTTP server, blocking until the server
// exits.
func (s *Server) Run(ctx context.Context) error {
	if s.broker != nil {
		if err := s.broker.StartConsumers(ctx, s.cfg.Broker); err != nil {
			return fmt.Errorf("failed to start consumers: %w", err)
		}
	}

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server",
		zap.String("service", s.cfg.Service.Name),
		zap.String("addr", addr),
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, closes the broker, and flushes the
// span pipeline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", zap.Error(err))
		}
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Error("broker close failed", zap.Error(err))
		}
	}
	if err := s.recorder.Shutdown(ctx); err != nil {
		s.logger.Error("recorder shutdown failed", zap.Error(err))
	}
	if closer, ok := s.exporter.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("exporter close failed", zap.Error(err))
		}
	}
	return nil
}

// Router exposes the underlying Gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
