package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "mantis",
		Usage: "Solana trading bot core",
		Description: `Runs the signal-driven trading core and provides debugging tools.

Use this CLI to run the daemon, fire one-shot trades, tail live signal
events, and inspect recorded trades and protection statistics.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			runCommand(),
			{
				Name:  "trade",
				Usage: "One-shot trade execution",
				Subcommands: []*cli.Command{
					buyCommand(),
					sellCommand(),
				},
			},
			{
				Name:  "signals",
				Usage: "Signal stream commands",
				Subcommands: []*cli.Command{
					tailSignalsCommand(),
				},
			},
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					listTradesCommand(),
					getTradeCommand(),
					protectionStatsCommand(),
					settingsCommand(),
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
