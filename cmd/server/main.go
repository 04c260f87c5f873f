package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/revalya/tenantaccess/internal/application/access"
	billingapp "github.com/revalya/tenantaccess/internal/application/billing"
	catalogapp "github.com/revalya/tenantaccess/internal/application/catalog"
	"github.com/revalya/tenantaccess/internal/infrastructure/audit"
	"github.com/revalya/tenantaccess/internal/infrastructure/auth"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"github.com/revalya/tenantaccess/internal/infrastructure/config"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"github.com/revalya/tenantaccess/internal/infrastructure/persistence"
	tenantdb "github.com/revalya/tenantaccess/internal/infrastructure/persistence/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/telemetry"
	"github.com/revalya/tenantaccess/internal/interfaces/http/handler"
	"github.com/revalya/tenantaccess/internal/interfaces/http/middleware"
	"github.com/revalya/tenantaccess/internal/interfaces/http/router"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

//	@title			Tenant Access API
//	@version		1.0
//	@description	Tenant-scoped product and billing period API
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting tenant access service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = meterProvider.Shutdown(shutdownCtx)
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()
	meter := meterProvider.Meter("tenantaccess")

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:        cfg.Telemetry.Enabled,
		DBName:         cfg.Database.DBName,
		TracerProvider: otel.GetTracerProvider(),
	}, log); err != nil {
		return err
	}
	log.Info("Database connected successfully")

	strategy, err := tenantdb.ParseStrategy(cfg.Access.ContextStrategy)
	if err != nil {
		return err
	}
	applier := tenantdb.NewGormContextApplier(strategy)

	// Redis backs token revocation and cross-instance cache invalidation
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		_ = rdb.Close()
	}()

	auditLog, err := audit.New(log, audit.WithWindow(cfg.Audit.ThrottleWindow), audit.WithMeter(meter))
	if err != nil {
		return err
	}
	accessMetrics, err := telemetry.NewAccessMetrics(meter)
	if err != nil {
		return err
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	blacklist := auth.NewRedisTokenBlacklist(rdb)
	revoker := auth.NewSessionRevoker(blacklist, jwtService.Expiration(), log)

	queryCache := cache.NewQueryCache(
		cache.WithLogger(log),
		cache.WithGCTime(cfg.Cache.GCTime),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
	)

	deps := access.Dependencies{
		DB:                 db.DB,
		Applier:            applier,
		Cache:              queryCache,
		Audit:              auditLog,
		Metrics:            accessMetrics,
		SessionInvalidator: revoker,
		Tracer:             tracerProvider.Tracer("tenantaccess/access"),
	}

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()
	if cfg.Cache.InvalidationEnabled {
		bus := cache.NewRedisInvalidationBus(rdb,
			cache.WithChannel(cfg.Cache.InvalidationChannel),
			cache.WithBusLogger(log))
		deps.Publisher = bus
		go func() {
			if err := bus.Run(bgCtx, queryCache); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Cache invalidation bus stopped", zap.Error(err))
			}
		}()
		defer func() {
			_ = bus.Close()
		}()
	}

	execCfg := access.DefaultConfig()
	execCfg.PinConnection = cfg.Access.PinConnection
	execCfg.StrictClear = cfg.Access.StrictClear
	execCfg.ViolationPolicy = access.ViolationPolicy(cfg.Access.SecurityViolationPolicy)
	execCfg.StaleTime = cfg.Cache.StaleTime
	execCfg.GCTime = cfg.Cache.GCTime
	if cfg.Retry.MaxAttempts > 0 {
		execCfg.Retry.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay > 0 {
		execCfg.Retry.BaseDelay = cfg.Retry.BaseDelay
	}
	if len(cfg.Retry.Constraints) > 0 {
		execCfg.Retry.Constraints = cfg.Retry.Constraints
	}

	executor, err := access.NewExecutor(deps, execCfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = executor.Close()
	}()

	// Application services
	productService := catalogapp.NewProductService(executor, persistence.NewGormProductRepository())
	periodService := billingapp.NewPeriodService(executor, persistence.NewGormBillingPeriodRepository())
	tenantRepo := persistence.NewGormTenantRepository(db.DB)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return err
	}
	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Secure(),
	)

	health := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	engine.GET("/healthz", health.Live)
	engine.GET("/ready", health.Ready)

	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.TokenBlacklist = blacklist
	jwtCfg.Logger = log

	router.NewRouter(engine,
		router.WithMiddleware(
			middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
			middleware.Session(tenantRepo, log),
			middleware.SpanAttributes(),
		),
	).
		Register(handler.NewProductHandler(productService)).
		Register(handler.NewBillingHandler(periodService)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
