package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/soundsort/api/handlers"
	"github.com/BaSui01/soundsort/batch"
	"github.com/BaSui01/soundsort/config"
	"github.com/BaSui01/soundsort/inference"
	"github.com/BaSui01/soundsort/internal/cache"
	"github.com/BaSui01/soundsort/internal/metrics"
	"github.com/BaSui01/soundsort/internal/server"
	"github.com/BaSui01/soundsort/internal/telemetry"
)

const metricsNamespace = "soundsort"

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装调度器、HTTP 服务与指标服务
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	engine    inference.Engine
	scheduler *batch.Scheduler
	cache     *cache.Manager
	otel      *telemetry.Providers

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler   *handlers.HealthHandler
	classifyHandler *handlers.ClassifyHandler

	metricsCollector *metrics.Collector
	metricsNamespace string

	// 中间件后台任务生命周期
	middlewareCancel context.CancelFunc
}

// NewServer 创建服务器；engine 的所有权转移给 Server，在 Shutdown 时关闭
func NewServer(cfg *config.Config, engine inference.Engine, otelProviders *telemetry.Providers, logger *zap.Logger) *Server {
	return &Server{
		cfg:              cfg,
		logger:           logger,
		engine:           engine,
		otel:             otelProviders,
		metricsNamespace: metricsNamespace,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动调度器与 HTTP/Metrics 服务（非阻塞）
func (s *Server) Start(ctx context.Context) error {
	s.metricsCollector = metrics.NewCollector(s.metricsNamespace, s.logger)

	if err := s.initScheduler(ctx); err != nil {
		return fmt.Errorf("failed to init scheduler: %w", err)
	}

	if err := s.initCache(ctx); err != nil {
		return fmt.Errorf("failed to init label cache: %w", err)
	}

	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
		zap.Int("batch_size", s.cfg.Scheduler.BatchSize),
		zap.Duration("max_wait", s.cfg.Scheduler.MaxWait),
		zap.Bool("label_cache", s.cache != nil),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initScheduler(ctx context.Context) error {
	var observer batch.Observer = s.metricsCollector
	if s.otel.MetricsEnabled() {
		otelMetrics, err := telemetry.NewBatchMetrics(s.otel.MeterProvider())
		if err != nil {
			return fmt.Errorf("otel batch metrics: %w", err)
		}
		observer = batch.Observers(s.metricsCollector, otelMetrics)
	}

	scheduler, err := batch.NewScheduler(
		batch.Config{
			BatchSize: s.cfg.Scheduler.BatchSize,
			MaxWait:   s.cfg.Scheduler.MaxWait,
		},
		inference.NewAdapter(s.engine, s.logger),
		batch.WithLogger(s.logger),
		batch.WithObserver(observer),
	)
	if err != nil {
		return err
	}
	// 调度器生命周期由 Shutdown 控制，不跟随启动上下文
	if err := scheduler.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	s.scheduler = scheduler
	return nil
}

func (s *Server) initCache(ctx context.Context) error {
	if !s.cfg.Cache.Enabled {
		return nil
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = s.cfg.Cache.Addr
	cacheCfg.Password = s.cfg.Cache.Password
	cacheCfg.DB = s.cfg.Cache.DB
	cacheCfg.TLS = s.cfg.Cache.TLS
	cacheCfg.DefaultTTL = s.cfg.Cache.TTL

	manager, err := cache.NewManager(ctx, cacheCfg, s.logger)
	if err != nil {
		return err
	}
	s.cache = manager
	return nil
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewSchedulerHealthCheck(s.scheduler))

	opts := []handlers.ClassifyOption{handlers.WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes)}
	if s.cache != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("label_cache", s.cache.Ping))
		opts = append(opts, handlers.WithLabelCache(
			cache.NewLabelCache(s.cache, s.cfg.Cache.TTL, s.logger),
			s.metricsCollector,
		))
	}
	s.classifyHandler = handlers.NewClassifyHandler(s.scheduler, s.logger, opts...)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 构建路由与中间件链
func (s *Server) routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 分类端点受准入许可约束
	classify := AdmissionLimit(s.cfg.Server.MaxInFlight, s.metricsCollector, s.logger)(
		http.HandlerFunc(s.classifyHandler.HandleClassify))
	mux.Handle("POST /{$}", classify)
	mux.Handle("POST /api/v1/classify", classify)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	)
}

func (s *Server) startHTTPServer() error {
	middlewareCtx, cancel := context.WithCancel(context.Background())
	s.middlewareCancel = cancel

	s.httpManager = server.NewManager(s.routes(middlewareCtx), server.Config{
		Name:            "http",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Run 阻塞到收到信号、服务器出错或 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	waitErr := server.WaitForSignal(ctx, s.logger, s.httpManager, s.metricsManager)
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		s.logger.Error("server stopped unexpectedly", zap.Error(waitErr))
	}
	shutdownErr := s.Shutdown(context.Background())
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return errors.Join(waitErr, shutdownErr)
	}
	return shutdownErr
}

// Shutdown 依次关闭：HTTP（不再接收新请求）→ 调度器（完成当前批，拒绝排队请求）
// → Metrics → 缓存 → 推理引擎 → 遥测
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Starting graceful shutdown...")
	var errs []error

	if s.middlewareCancel != nil {
		s.middlewareCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	if s.scheduler != nil {
		if err := s.scheduler.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
		stats := s.scheduler.Stats()
		s.logger.Info("scheduler stopped",
			zap.Int64("completed", stats.Completed),
			zap.Int64("failed", stats.Failed),
			zap.Int64("rejected", stats.Rejected),
			zap.Float64("batch_efficiency", stats.BatchEfficiency()),
		)
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("label cache: %w", err))
		}
	}

	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("inference engine: %w", err))
		}
	}

	if err := s.otel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("Graceful shutdown finished with errors", zap.Error(err))
	} else {
		s.logger.Info("Graceful shutdown completed")
	}
	return err
}
