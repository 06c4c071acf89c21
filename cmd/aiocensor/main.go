package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aiocensor/aiocensor/censor/flow"
	"github.com/aiocensor/aiocensor/censor/store"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "aiocensor",
		Usage:   "content moderation gatekeeper",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string: sqlite://<path> or postgres://...",
			Value:   "sqlite://data/aiocensor/censor.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   20,
		},
		&cli.BoolFlag{
			Name:    "enable-db-tracing",
			Usage:   "emit OpenTelemetry spans for database queries",
			EnvVars: []string{"AIOCENSOR_ENABLE_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"AIOCENSOR_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		checkCmd,
		blacklistCmd,
		wordsCmd,
		auditCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func openStore(cctx *cli.Context) (*store.Store, error) {
	db, err := store.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cctx.Bool("enable-db-tracing") {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
	}
	return store.New(db)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation API daemon",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":9966",
			EnvVars: []string{"AIOCENSOR_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":9967",
			EnvVars: []string{"AIOCENSOR_METRICS_LISTEN"},
		},
		&cli.BoolFlag{
			Name:    "enable-audit-log",
			Usage:   "persist every result that is not a pass",
			Value:   true,
			EnvVars: []string{"AIOCENSOR_ENABLE_AUDIT_LOG"},
		},
		&cli.DurationFlag{
			Name:    "refresh-interval",
			Usage:   "how often blacklist and sensitive words are reloaded from the database",
			Value:   flow.DefaultRefreshInterval,
			EnvVars: []string{"AIOCENSOR_REFRESH_INTERVAL"},
		},
	}, flowFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		logger := configLogger(cctx, os.Stdout)

		shutdownTracing, err := setupTracing(ctx, "aiocensor")
		if err != nil {
			return err
		}
		defer shutdownTracing()

		st, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer st.Close()

		f, sets, err := newFlow(cctx, logger)
		if err != nil {
			return err
		}
		defer f.Close()

		srv, err := NewServer(f, st, Config{
			Logger:          logger,
			Bind:            cctx.String("bind"),
			EnableAuditLog:  cctx.Bool("enable-audit-log"),
			RefreshInterval: cctx.Duration("refresh-interval"),
			Sets:            sets,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(ctx, cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		go srv.RunRefresh(ctx)

		return srv.RunAPI()
	},
}
