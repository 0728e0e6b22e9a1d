// Command expensectl lists, summarizes, adds and deletes expenses from the terminal,
// against the same expense API as the web pages.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	cli.LoadEnvFile()

	level, err := applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || os.Getenv("LOG_LEVEL") == "" {
		level = slog.LevelWarn
	}
	// Logs go to stderr so command output stays pipeable.
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentCLI, Output: os.Stderr})
	applog.SetDefault(logger)

	a := &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		open: func(events bool) (expenseService, func(), error) {
			return openExpenses(config.Load(), logger, events)
		},
		consume: func(ctx context.Context, queue string, handler amqp.Handler) error {
			cfg := config.Load()
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set; nothing to watch")
			}
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
			if err != nil {
				return err
			}
			defer client.Close()
			return client.ConsumeExpenseEvents(ctx, queue, handler)
		},
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	a.register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openExpenses builds the expense service from cfg. The event publisher is only
// connected when events is set.
func openExpenses(cfg *config.Config, logger *applog.Logger, events bool) (expenseService, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if !cfg.UsesRemoteGateway() {
		// Each invocation gets a fresh store.
		logger.Warn("GATEWAY_BASE_URL is not set; using a temporary in-memory store, changes are lost when the command exits",
			"seed_file", cfg.SeedFile)
	}
	gw, err := cli.NewGateway(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	var publisher services.Publisher
	if events {
		publisher, _ = cli.NewPublisher(cfg, logger)
	}
	svc := services.NewExpenseService(gw, publisher)
	return svc, func() { _ = svc.Close() }, nil
}
