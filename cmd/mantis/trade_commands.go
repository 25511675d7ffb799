package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/mantis-trade/mantis/service/db"
	"github.com/mantis-trade/mantis/service/engine"
	"github.com/mantis-trade/mantis/service/jupiter"
	"github.com/mantis-trade/mantis/service/protect"
	"github.com/mantis-trade/mantis/service/retry"
	"github.com/mantis-trade/mantis/service/solana"
)

func buyCommand() *cli.Command {
	return tradeCommand("buy", engine.SideBuy, "Buy a token with SOL", "amount of SOL to spend")
}

func sellCommand() *cli.Command {
	return tradeCommand("sell", engine.SideSell, "Sell a token for SOL", "amount of tokens to sell")
}

func tradeCommand(name string, side engine.Side, usage, amountUsage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "TOKEN_MINT",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    amountUsage,
				Required: true,
			},
			&cli.Float64Flag{
				Name:    "slippage",
				Aliases: []string{"s"},
				Value:   5,
				Usage:   "maximum slippage percent (0-50)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output result as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("token mint address is required")
			}
			return executeOneShot(c, side, c.Args().Get(0))
		},
	}
}

// executeOneShot wires a minimal stack (no signal sources, no metrics
// endpoint) and runs a single trade to completion.
func executeOneShot(c *cli.Context, side engine.Side, token string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)
	ctx := context.Background()

	conn := db.NewConn(cfg.DatabaseURL)
	connector := retry.NewConnector(conn, cfg.Retry, nil, logger)
	exec := retry.NewExecutor(cfg.Retry, connector, nil, logger)

	var store engine.TradeStore
	if err := connector.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: database unavailable, trade will not be recorded: %v\n", err)
	} else {
		defer conn.Close(context.Background())
		store = db.NewStore(conn)
	}

	var wallet *solana.Wallet
	if cfg.WalletPrivateKey != "" {
		wallet, err = solana.NewWalletFromBase58(cfg.WalletPrivateKey)
		if err != nil {
			return fmt.Errorf("failed to load trading wallet: %w", err)
		}
	}

	chain := solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), nil, logger)
	aggregator := jupiter.NewClient(cfg.JupiterBaseURL, "", http.DefaultClient, logger)

	var bundles protect.BundleSender
	if cfg.Protection.BundlingEnabled && cfg.Protection.BundleAuthKey != "" {
		bundles = protect.NewJitoClient(cfg.Protection.BundleRelayURL, cfg.Protection.BundleAuthKey, http.DefaultClient, logger)
	}
	router := protect.NewRouter(cfg.Protection, bundles, nil, exec, nil, logger)

	eng := engine.New(engine.Params{
		Config:     cfg,
		Aggregator: aggregator,
		Chain:      chain,
		Wallet:     wallet,
		Protector:  router,
		Store:      store,
		Executor:   exec,
		Logger:     logger,
	})

	result, execErr := eng.Execute(ctx, &engine.Request{
		Token:          token,
		Side:           side,
		Amount:         c.Float64("amount"),
		MaxSlippagePct: c.Float64("slippage"),
	})

	if c.Bool("json") {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printResult(result)
	}

	if execErr != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func printResult(result *engine.Result) {
	if result.Success {
		fmt.Printf("Trade completed\n")
		fmt.Printf("  Signature:  %s\n", result.Signature)
		fmt.Printf("  Price:      %.8f\n", result.Price)
		fmt.Printf("  Fees:       %.8f\n", result.Fees)
		fmt.Printf("  Slippage:   %.4f%%\n", result.SlippagePct)
		fmt.Printf("  Protection: %s\n", result.ProtectionMethod)
		fmt.Printf("  Duration:   %s\n", result.ProcessingTime)
		return
	}
	fmt.Printf("Trade failed: %s\n", result.Error)
	fmt.Printf("  Duration: %s\n", result.ProcessingTime)
}
