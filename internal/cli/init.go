// Package cli provides common initialization shared by cmd/expensetracker and cmd/expensectl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/amqp"
	"expensetracker/internal/config"
	"expensetracker/internal/gateway"
	"expensetracker/internal/gateway/memory"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and sets it as the
// default logger. Unknown levels fall back to info.
func SetupLogger(level string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := applog.New(applog.Config{
		Level:     lvl,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// NewGateway returns the REST client when a base URL is configured and the in-memory
// store otherwise.
func NewGateway(cfg *config.Config, logger *applog.Logger) (gateway.Gateway, error) {
	if cfg.UsesRemoteGateway() {
		client, err := gateway.NewClient(cfg.GatewayBaseURL, gateway.WithTimeout(cfg.GatewayTimeout))
		if err != nil {
			return nil, err
		}
		logger.Info("Using expense REST API", "base_url", cfg.GatewayBaseURL, "timeout", cfg.GatewayTimeout)
		return client, nil
	}

	store, err := memory.NewFromFile(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Using in-memory expense store", "seed_file", cfg.SeedFile, applog.FieldCount, store.Len())
	return store, nil
}

// NewPublisher connects to the broker when AMQP_URL is set. Connection failures are
// logged and yield a nil publisher so the pages keep working without events.
func NewPublisher(cfg *config.Config, logger *applog.Logger) (services.Publisher, *amqp.Client) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, expense events disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn("Failed to connect to AMQP broker, expense events disabled",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentAMQP)
		return nil, nil
	}
	logger.Info("Connected to AMQP broker", "exchange", cfg.AMQPExchange)
	return client, client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
