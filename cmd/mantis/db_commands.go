package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mantis-trade/mantis/service/db"
)

// withStore connects to the database for the duration of one command.
func withStore(c *cli.Context, fn func(ctx context.Context, store *db.Store) error) error {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn := db.NewConn(databaseURL)
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(context.Background())

	return fn(ctx, db.NewStore(conn))
}

func databaseURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database-url",
		Usage:   "PostgreSQL connection URL",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func listTradesCommand() *cli.Command {
	return &cli.Command{
		Name:  "trades",
		Usage: "List recorded trades",
		Flags: []cli.Flag{
			databaseURLFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Maximum number of trades to retrieve",
			},
			&cli.IntFlag{
				Name:    "offset",
				Aliases: []string{"o"},
				Value:   0,
				Usage:   "Number of trades to skip",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, store *db.Store) error {
				trades, err := store.ListTrades(ctx, int32(c.Int("limit")), int32(c.Int("offset")))
				if err != nil {
					return fmt.Errorf("failed to list trades: %w", err)
				}

				if c.Bool("json") {
					data, err := json.MarshalIndent(trades, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				}

				if len(trades) == 0 {
					fmt.Println("No trades recorded.")
					return nil
				}
				for _, trade := range trades {
					sig := ""
					if trade.Signature != nil {
						sig = *trade.Signature
					}
					fmt.Printf("%s  %-4s %-12s amount=%.6f price=%.8f status=%-9s protection=%-13s %s\n",
						trade.CreatedAt.Format(time.RFC3339),
						trade.Side,
						trade.Token,
						trade.Amount,
						trade.Price,
						trade.Status,
						trade.ProtectionMethod,
						sig,
					)
				}
				return nil
			})
		},
	}
}

func getTradeCommand() *cli.Command {
	return &cli.Command{
		Name:      "trade",
		Usage:     "Show one trade by ID",
		ArgsUsage: "TRADE_ID",
		Flags:     []cli.Flag{databaseURLFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("trade ID is required")
			}
			return withStore(c, func(ctx context.Context, store *db.Store) error {
				trade, err := store.GetTrade(ctx, c.Args().Get(0))
				if err != nil {
					return fmt.Errorf("failed to get trade: %w", err)
				}
				data, err := json.MarshalIndent(trade, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			})
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show operator trading settings",
		Flags: []cli.Flag{databaseURLFlag()},
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, store *db.Store) error {
				settings, err := store.GetSettings(ctx)
				if err != nil {
					return fmt.Errorf("failed to get settings: %w", err)
				}
				fmt.Printf("Trading mode:     %s\n", settings.TradingMode)
				fmt.Printf("Trading enabled:  %v\n", settings.TradingEnabled)
				fmt.Printf("Max position SOL: %.4f\n", settings.MaxPositionSOL)
				fmt.Printf("Updated at:       %s\n", settings.UpdatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func protectionStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "protection-stats",
		Usage: "Show per-method protection usage statistics",
		Flags: []cli.Flag{
			databaseURLFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, store *db.Store) error {
				stats, err := store.ProtectionStats(ctx)
				if err != nil {
					return fmt.Errorf("failed to get protection stats: %w", err)
				}

				if c.Bool("json") {
					data, err := json.MarshalIndent(stats, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				}

				if len(stats) == 0 {
					fmt.Println("No protection usage recorded.")
					return nil
				}
				fmt.Printf("%-15s %8s %14s %12s\n", "METHOD", "COUNT", "TOTAL COST", "APPLIED")
				for _, s := range stats {
					fmt.Printf("%-15s %8d %14.6f %11.1f%%\n",
						s.Method, s.Count, s.TotalCostSOL, s.AppliedRate*100)
				}
				return nil
			})
		},
	}
}
