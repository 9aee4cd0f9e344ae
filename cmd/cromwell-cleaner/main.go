package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/dev-tams/cromwell-cleaner/internal/app"
	"github.com/dev-tams/cromwell-cleaner/internal/config"
	"github.com/dev-tams/cromwell-cleaner/internal/logging"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cromwell-cleaner:", err)
	}
	os.Exit(app.ExitCode(err))
}

func newApp() *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}

	return &cli.App{
		Name:         "cromwell-cleaner",
		Usage:        "delete Cromwell execution scaffold from a bucket, keeping workflow outputs",
		Version:      version,
		Flags:        sweepFlags(),
		OnUsageError: usageError,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			log := newLogger(cfg, c.Bool("verbose"))
			_, err = app.RunSweep(c.Context, cfg, c.App.Writer, log)
			return err
		},
		Commands: []*cli.Command{
			{
				Name:         "daemon",
				Usage:        "sweep repeatedly on a cron schedule until interrupted",
				OnUsageError: usageError,
				Flags: append(sweepFlags(),
					&cli.StringFlag{
						Name:  "schedule",
						Usage: "cron expression or descriptor, evaluated in UTC (e.g. \"0 3 * * *\", @daily)",
					},
					&cli.DurationFlag{
						Name:  "run-timeout",
						Usage: "stop a scheduled sweep that runs longer than this (0 = no limit)",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if c.IsSet("schedule") {
						cfg.Schedule = c.String("schedule")
					}
					if c.IsSet("run-timeout") {
						cfg.RunTimeout = c.Duration("run-timeout")
					}

					r := &app.Runner{Out: c.App.Writer, Log: newLogger(cfg, c.Bool("verbose"))}
					return r.RunDaemon(c.Context, cfg)
				},
			},
			{
				Name:         "rules",
				Usage:        "print the effective scaffold rule table as YAML",
				OnUsageError: usageError,
				Flags:        []cli.Flag{configFlag()},
				Action: func(c *cli.Context) error {
					cfg, err := config.LoadConfig(c.String("config"))
					if err != nil {
						return err
					}
					classifier, err := app.BuildClassifier(cfg)
					if err != nil {
						return err
					}
					return app.WriteRules(c.App.Writer, classifier)
				},
			},
		},
	}
}

func usageError(_ *cli.Context, err error, _ bool) error {
	return fmt.Errorf("%w: %v", config.ErrInvalid, err)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config yaml (optional)",
	}
}

func sweepFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "bucket",
			Aliases: []string{"b"},
			Usage:   "location to clean, e.g. gs://bucket/cromwell-executions",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "list what would be deleted without deleting anything",
		},
		configFlag(),
		&cli.IntFlag{
			Name:  "workers",
			Usage: "concurrent delete requests",
		},
		&cli.IntFlag{
			Name:  "queue-size",
			Usage: "classified objects buffered ahead of the workers",
		},
		&cli.IntFlag{
			Name:  "max-attempts",
			Usage: "attempts per request before giving up on a transient error",
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "timeout for a single storage request",
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "delete requests per second across all workers (0 = unlimited)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "console or json",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "write prometheus metrics to this textfile after the run",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "require-workflow-uuid",
			Usage: "only clean under workflow directories named by a UUID",
		},
	}
}

// loadConfig layers flags that were set explicitly over file and env values.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("bucket") {
		cfg.Bucket = c.String("bucket")
	}
	if c.IsSet("dry-run") {
		cfg.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("queue-size") {
		cfg.QueueSize = c.Int("queue-size")
	}
	if c.IsSet("max-attempts") {
		cfg.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("request-timeout") {
		cfg.RequestTimeout = c.Duration("request-timeout")
	}
	if c.IsSet("rate-limit") {
		cfg.RateLimit = c.Float64("rate-limit")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("metrics-file") {
		cfg.MetricsFile = c.String("metrics-file")
	}
	if c.IsSet("require-workflow-uuid") {
		cfg.Classifier.RequireWorkflowUUID = c.Bool("require-workflow-uuid")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, verbose bool) zerolog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, ok := logging.New(level, cfg.LogFormat, os.Stderr)
	if !ok {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
	}
	return log
}
