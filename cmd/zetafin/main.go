package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"zetafin/internal/backend"
	"zetafin/internal/cache"
	"zetafin/internal/cli"
	"zetafin/internal/config"
	apphttp "zetafin/internal/http"
	"zetafin/internal/log"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.NewFactory(logger).Create(startCtx, backendCfg)
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	var srv *apphttp.Server
	ctx, cancel, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if srv == nil {
			return
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})
	defer cancel()

	// Warm the in-memory view; a failure here is served as an error later.
	if _, err := res.Accessor.LoadAll(ctx); err != nil {
		logger.Warn("Initial load failed", log.FieldError, err, log.FieldMode, string(res.Mode))
	}

	caches := cache.NewManager(logger)
	caches.Register(res.Accessor.SummaryCache())
	caches.StartCleanup(ctx, cfg.CacheCleanupEvery)
	defer caches.Stop()

	checks := map[string]apphttp.ReadinessCheck{}
	if p, ok := res.Local.(pinger); ok {
		checks["local"] = p.Ping
	}
	if res.Remote != nil {
		checks["remote"] = res.Remote.Ping
	}

	userID := cfg.RemoteUserID
	if res.Session != nil && res.Session.User().ID != "" {
		userID = res.Session.User().ID
	}

	srv = apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Accessor:           res.Accessor,
		UserID:             userID,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadinessChecks:    checks,
	})

	logger.Info("Starting zetafin server", "port", cfg.Port, log.FieldMode, string(res.Mode))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
