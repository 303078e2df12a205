// Package main provides the FlowForge background worker: it runs the
// delay and overdue sweeps and mirrors engine events into the log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	appcmd "github.com/Nirvasoft/FlowForge-sub003/pkg/cmd"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/log"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/otelhelper"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/scheduler"
)

func main() {
	logger := log.WithModule("worker")

	command := &cli.Command{
		Name:                  "flowforge-worker",
		Usage:                 "Run scheduled sweeps and consume engine events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://...) or a directory for file persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule for the delay and overdue sweeps",
				Value:   "@every 30s",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger.InfoContext(ctx, "Initializing FlowForge worker")

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				if _, err := otelhelper.NewTracer(ctx, "flowforge-worker"); err != nil {
					return fmt.Errorf("failed to initialize tracing: %w", err)
				}
			}

			ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			stack, err := appcmd.NewStack(ctx, logger, appcmd.Config{
				DatabaseURL:      command.String("database-url"),
				EventBusProvider: command.String("event-bus"),
			})
			if err != nil {
				return err
			}

			defer func() {
				if err := stack.Close(context.Background()); err != nil {
					logger.Error("Failed to close stack", "error", err)
				}
			}()

			if err := registerEventLogging(stack, logger); err != nil {
				return err
			}

			if err := stack.EventBus.Subscribe(ctx); err != nil {
				return err
			}

			sweeps := scheduler.NewScheduler(stack.Executions, stack.Tasks, logger,
				scheduler.WithSchedule(command.String("sweep-schedule")))

			if err := sweeps.Start(ctx); err != nil {
				return err
			}

			defer sweeps.Stop()

			logger.InfoContext(ctx, "Worker running")
			<-ctx.Done()

			logger.Info("Worker shutting down")

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Worker exited", "error", err)
		os.Exit(1)
	}
}
