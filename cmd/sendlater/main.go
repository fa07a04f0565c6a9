package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sendlater/internal/config"
	"sendlater/internal/connectivity"
	"sendlater/internal/constants"
	"sendlater/internal/database"
	"sendlater/internal/retry"
	"sendlater/internal/service"
	"sendlater/internal/tracing"
	"sendlater/pkg/circuitbreaker"
	"sendlater/pkg/gateway"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("sendlater %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting sendlater")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// The store must come up before anything else; give a slow disk a few
	// chances before giving up.
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	monitor := connectivity.NewMonitor(
		cfg.Connectivity.ProbeURL,
		time.Duration(cfg.Connectivity.ProbeIntervalSec)*time.Second,
		time.Duration(cfg.Connectivity.DebounceMs)*time.Millisecond,
		logger,
	)
	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}
	defer monitor.Stop()

	var gatewayOpts []gateway.Option
	if cfg.Gateway.BreakerEnabled {
		breaker := circuitbreaker.New(
			"delivery-gateway",
			uint32(cfg.Gateway.BreakerMaxFail),
			time.Duration(cfg.Gateway.BreakerResetMs)*time.Millisecond,
			logger,
		)
		gatewayOpts = append(gatewayOpts, gateway.WithBreaker(breaker))
	}
	client := gateway.NewClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.APIKey,
		time.Duration(cfg.Gateway.TimeoutSec)*time.Second,
		logger,
		gatewayOpts...,
	)

	// Settings saved through the API outlive the process; the stored toggle
	// wins over the config default.
	autoSync, err := db.LastAutoSync(ctx, cfg.Sync.AutoSync)
	if err != nil {
		logger.Warnf("Failed to read stored auto-sync setting: %v", err)
	}

	notifier := service.NewNotifier()
	engine := service.NewSyncEngine(db, client, monitor, notifier, autoSync, logger)
	queue := service.NewQueueService(db, engine, notifier, logger)

	onReconnect := engine.OnReconnect(ctx)
	unsubscribe := monitor.Subscribe(func(status connectivity.Status) {
		onReconnect(status.Online())
	})
	defer unsubscribe()

	scheduler := service.NewScheduler(
		engine,
		db,
		time.Duration(cfg.Sync.IntervalSec)*time.Second,
		cfg.Sync.RetentionDays,
		logger,
	)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	server := NewServer(cfg.Server.Port, queue, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Failed to shutdown server cleanly: %v", err)
	}

	logger.Info("sendlater stopped")
	return nil
}
