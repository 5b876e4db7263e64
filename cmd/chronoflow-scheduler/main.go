package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/chronoflow/chronoflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "chronoflow-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Schedule and run workflows on their timeplans",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list (kafka event bus only)",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "coordination-url",
				Usage:   "Coordination backend URL (redis://... or memory)",
				Value:   "memory",
				Sources: cli.EnvVars("COORDINATION_URL"),
			},
			&cli.IntFlag{
				Name:    "max-executing",
				Usage:   "Maximum concurrently executing workflows",
				Value:   4,
				Sources: cli.EnvVars("MAX_EXECUTING"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Interval between scheduling passes",
				Value:   1 * time.Minute,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("chronoflow-scheduler")
			logger.InfoContext(ctx, "Initializing scheduler")

			daemon := NewDaemon(
				logger,
				command.String("database-url"),
				command.String("event-bus"),
				command.String("kafka-brokers"),
				command.String("coordination-url"),
				command.Int("max-executing"),
				command.Duration("poll-interval"),
				command.Bool("tracing"),
			)

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return daemon.Run(runCtx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
