// Package main is the entry point for the pipegate server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkoretsky/pipegate/internal/body"
	"github.com/dkoretsky/pipegate/internal/config"
	"github.com/dkoretsky/pipegate/internal/middleware"
	"github.com/dkoretsky/pipegate/internal/observability"
	"github.com/dkoretsky/pipegate/internal/pipeline"
	"github.com/dkoretsky/pipegate/internal/ratelimit"
	"github.com/dkoretsky/pipegate/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("PIPEGATE_CONFIG_PATH", "configs/pipegate.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("PIPEGATE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("PIPEGATE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("pipegate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting pipegate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("address", cfg.Server.Address()),
		observability.Bool("rate_limit", cfg.Pipeline.RateLimit != nil && cfg.Pipeline.RateLimit.Enabled),
		observability.Bool("cors", cfg.Pipeline.CORS != nil && cfg.Pipeline.CORS.Enabled),
		observability.Bool("tracing", cfg.Tracing.Enabled),
	)

	return cfg
}

// application holds all application components.
type application struct {
	server        *server.Server
	executor      *pipeline.Executor
	windowLimiter *ratelimit.ClientWindowLimiter
	limiter       ratelimit.Limiter
	tracer        *observability.Tracer
	config        *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	tracer := initTracer(cfg, logger)

	executor := pipeline.NewExecutor(
		pipeline.WithExecutorLogger(logger),
		pipeline.WithAccessLog(),
	)

	app := &application{
		executor: executor,
		tracer:   tracer,
		config:   cfg,
	}

	buildPipeline(app, cfg, logger)

	srvCfg := &server.ServerConfig{
		Address:      cfg.Server.Address(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  120 * time.Second,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	srv := server.NewServer(srvCfg, executor, server.WithServerLogger(logger))

	handler := inspectHandler
	if cb := cfg.Pipeline.CircuitBreaker; cb != nil && cb.Enabled {
		breaker := middleware.NewCircuitBreaker("pipegate",
			cb.Threshold, cb.Timeout.Duration(),
			middleware.WithCircuitBreakerLogger(logger),
		)
		handler = breaker.Wrap(handler)
	}
	srv.HandleFallback(handler)

	app.server = srv
	return app
}

// buildPipeline wires the configured middlewares into the executor. The
// header-carrying pre-middlewares register as a single chain so the headers
// each of them carries survive the executor's last-capture semantics.
func buildPipeline(app *application, cfg *config.Config, logger observability.Logger) {
	var pres []pipeline.PreMiddleware

	if rid := cfg.Pipeline.RequestID; rid != nil && rid.Enabled {
		pres = append(pres, middleware.NewRequestID("/"))
	}

	if c := cfg.Pipeline.CORS; c != nil && c.Enabled {
		corsCfg := middleware.DefaultCORSConfig()
		if len(c.AllowOrigins) > 0 {
			corsCfg.AllowOrigins = c.AllowOrigins
		}
		if len(c.AllowMethods) > 0 {
			corsCfg.AllowMethods = c.AllowMethods
		}
		if len(c.AllowHeaders) > 0 {
			corsCfg.AllowHeaders = c.AllowHeaders
		}
		corsCfg.ExposeHeaders = c.ExposeHeaders
		corsCfg.AllowCredentials = c.AllowCredentials
		if c.MaxAge > 0 {
			corsCfg.MaxAge = c.MaxAge
		}
		pres = append(pres, middleware.NewCORS(scopeOrRoot(c.Scope), corsCfg))
	}

	if rl := cfg.Pipeline.RateLimit; rl != nil && rl.Enabled {
		limiter := buildLimiter(app, rl, logger)

		opts := []middleware.RateLimitOption{
			middleware.WithRateLimitLogger(logger),
			middleware.WithProxyMode(rl.ProxyMode),
			middleware.WithRejectionMessage(rl.RejectionMessage),
		}
		if rl.GlobalRPS > 0 {
			burst := rl.GlobalBurst
			if burst < 1 {
				burst = int(rl.GlobalRPS)
			}
			opts = append(opts, middleware.WithGlobalLimiter(
				ratelimit.NewGlobalLimiter(rl.GlobalRPS, burst),
			))
		}

		pres = append(pres, middleware.NewRateLimit(scopeOrRoot(rl.Scope), limiter, opts...))
	}

	if len(pres) > 0 {
		app.executor.AddPre(middleware.NewChain("pre", pres...))
	}

	if sh := cfg.Pipeline.SecurityHeaders; sh != nil && sh.Enabled {
		shCfg := middleware.DefaultSecurityHeadersConfig()
		if sh.XFrameOptions != "" {
			shCfg.XFrameOptions = sh.XFrameOptions
		}
		if sh.XContentTypeOptions != "" {
			shCfg.XContentTypeOptions = sh.XContentTypeOptions
		}
		if sh.XXSSProtection != "" {
			shCfg.XXSSProtection = sh.XXSSProtection
		}
		if sh.StrictTransportSecurity != "" {
			shCfg.StrictTransportSecurity = sh.StrictTransportSecurity
		}
		if sh.ReferrerPolicy != "" {
			shCfg.ReferrerPolicy = sh.ReferrerPolicy
		}
		if sh.PermissionsPolicy != "" {
			shCfg.PermissionsPolicy = sh.PermissionsPolicy
		}
		shCfg.CustomHeaders = sh.CustomHeaders
		app.executor.AddPost(middleware.NewSecurityHeaders(scopeOrRoot(sh.Scope), shCfg))
	}
}

// buildLimiter creates the configured limiter backend.
func buildLimiter(
	app *application,
	rl *config.RateLimitConfig,
	logger observability.Logger,
) ratelimit.Limiter {
	if rl.Redis != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     rl.Redis.Addr,
			Password: rl.Redis.Password,
			DB:       rl.Redis.DB,
		})

		var opts []ratelimit.RedisLimiterOption
		opts = append(opts, ratelimit.WithRedisLogger(logger))
		if rl.Redis.KeyPrefix != "" {
			opts = append(opts, ratelimit.WithRedisPrefix(rl.Redis.KeyPrefix))
		}

		limiter := ratelimit.NewRedisLimiter(client,
			rl.MaxRequests, rl.Window.Duration(), opts...)
		app.limiter = limiter
		return limiter
	}

	var opts []ratelimit.ClientWindowOption
	opts = append(opts, ratelimit.WithWindowLogger(logger))
	if rl.SweepInterval.Duration() > 0 {
		opts = append(opts, ratelimit.WithSweepInterval(rl.SweepInterval.Duration()))
	}

	limiter := ratelimit.NewClientWindowLimiter(
		rl.MaxRequests, rl.Window.Duration(), opts...)
	limiter.StartSweep()

	app.windowLimiter = limiter
	app.limiter = limiter
	return limiter
}

// scopeOrRoot maps an empty configured scope to all paths.
func scopeOrRoot(scope string) string {
	if scope == "" {
		return "/"
	}
	return scope
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracerCfg := observability.TracerConfig{
		ServiceName:  "pipegate",
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
	}
	if cfg.Tracing.ServiceName != "" {
		tracerCfg.ServiceName = cfg.Tracing.ServiceName
	}
	if tracerCfg.SamplingRate == 0 {
		tracerCfg.SamplingRate = 1.0
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// inspectHandler describes the request body back to the caller. It exists
// so the pipeline has a terminal route out of the box; real deployments
// register their own handlers through the server.
func inspectHandler(_ context.Context, req *pipeline.Request) *pipeline.Response {
	kind := body.ClassifyRequest(req.ContentType(), req.HasBody())

	summary := map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
		"kind":   kind.String(),
		"bytes":  len(req.Body),
	}

	switch kind {
	case body.KindForm:
		fields := body.ParseForm(req.Body)
		summary["fields"] = len(fields)
	case body.KindMultipartForm:
		if boundary, ok := body.MultipartBoundary(req.ContentType()); ok {
			fields, files := body.DecodeMultipart(req.Body, boundary)
			summary["fields"] = len(fields)
			summary["files"] = len(files)
		}
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return pipeline.JSONResponse(http.StatusInternalServerError,
			`{"error":"internal server error"}`)
	}

	resp := pipeline.NewResponse()
	resp.SetHeader("Content-Type", "application/json")
	resp.Body = data
	return resp
}

// run starts the server and handles shutdown.
func run(app *application, configPath string, logger observability.Logger) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start(context.Background())
	}()

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, errCh, logger)
}

// startConfigWatcher starts the configuration watcher. Rate limit changes
// apply live through UpdateLimits; other changes need a restart.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		rl := newCfg.Pipeline.RateLimit
		if rl == nil || !rl.Enabled || app.windowLimiter == nil {
			return
		}
		app.windowLimiter.UpdateLimits(rl.MaxRequests, rl.Window.Duration())
		logger.Info("rate limits updated",
			observability.Int("max_requests", rl.MaxRequests),
			observability.Duration("window", rl.Window.Duration()),
		)
	}, config.WithLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for a shutdown signal and stops everything.
func waitForShutdown(
	app *application,
	watcher *config.Watcher,
	errCh <-chan error,
	logger observability.Logger,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	}

	shutdownTimeout := app.config.Server.ShutdownTimeout.Duration()
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if app.limiter != nil {
		if err := app.limiter.Close(); err != nil {
			logger.Error("failed to close rate limiter", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("pipegate stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
