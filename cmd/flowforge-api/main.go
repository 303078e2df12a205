// Package main provides the FlowForge API server.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	cli "github.com/urfave/cli/v3"

	appcmd "github.com/Nirvasoft/FlowForge-sub003/pkg/cmd"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/log"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/otelhelper"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/web"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowforge-api",
		Usage:                 "Serve the workflow and decision table API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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
				Name:    "redis-url",
				Usage:   "Redis URL for the decision result cache (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
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

			logger.InfoContext(ctx, "Initializing FlowForge API")

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				if _, err := otelhelper.NewTracer(ctx, "flowforge-api"); err != nil {
					return fmt.Errorf("failed to initialize tracing: %w", err)
				}
			}

			stack, err := appcmd.NewStack(ctx, logger, appcmd.Config{
				DatabaseURL:      command.String("database-url"),
				EventBusProvider: command.String("event-bus"),
				RedisURL:         command.String("redis-url"),
			})
			if err != nil {
				return err
			}

			defer func() {
				if err := stack.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close stack", "error", err)
				}
			}()

			handlers := web.NewHandlers(
				stack.Workflows,
				stack.Executions,
				stack.Tasks,
				stack.Decisions,
				stack.Registry,
				stack.EvalLog,
			)

			app := web.NewApp(handlers)

			port := command.Int("port")
			logger.InfoContext(ctx, "Starting API server", "port", port)

			return app.Listen(":" + strconv.Itoa(port))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("API server exited", "error", err)
		os.Exit(1)
	}
}
