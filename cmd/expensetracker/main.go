package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	gw, err := cli.NewGateway(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize expense gateway",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentGateway)
		os.Exit(1)
	}

	publisher, amqpClient := cli.NewPublisher(cfg, logger)
	svc := services.NewExpenseService(gw, publisher)

	var checks []apphttp.ReadinessCheck
	if amqpClient != nil {
		checks = append(checks, apphttp.ReadinessCheck{
			Name: "amqp",
			Check: func(context.Context) error {
				if !amqpClient.Connected() {
					return errors.New("broker connection closed")
				}
				return nil
			},
		})
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RedirectDelay:      cfg.RedirectDelay,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadinessTimeout:   cfg.GatewayTimeout,
		Logger:             logger,
		Checks:             checks,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.GatewayTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := svc.Close(); err != nil {
			logger.Error("Failed to release expense service", applog.FieldError, err)
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expense tracker",
			"port", cfg.Port,
			"remote_gateway", cfg.UsesRemoteGateway(),
			"events", amqpClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
