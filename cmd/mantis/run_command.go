package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/mantis-trade/mantis/service/db"
	"github.com/mantis-trade/mantis/service/engine"
	"github.com/mantis-trade/mantis/service/events"
	"github.com/mantis-trade/mantis/service/jupiter"
	"github.com/mantis-trade/mantis/service/metrics"
	"github.com/mantis-trade/mantis/service/protect"
	"github.com/mantis-trade/mantis/service/retry"
	"github.com/mantis-trade/mantis/service/signals"
	"github.com/mantis-trade/mantis/service/solana"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the trading core daemon",
		Description: `Starts every component: signal sources, the trade execution engine,
the protection router, the event publisher, and the metrics endpoint.
Configuration comes from environment variables and fails fast when
anything required is missing.`,
		Action: func(c *cli.Context) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	cfg := config.MustLoad()
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting mantis core",
		"environment", cfg.Environment,
		"metrics_addr", cfg.MetricsAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	// Database through the shared resilient connection handle.
	conn := db.NewConn(cfg.DatabaseURL)
	connector := retry.NewConnector(conn, cfg.Retry, m, logger)
	if err := connector.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(context.Background())
	logger.Info("connected to database")

	store := db.NewStore(conn)
	exec := retry.NewExecutor(cfg.Retry, connector, m, logger)

	publisher, err := events.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer publisher.Close()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	chain := solana.NewClient(solanaRPC, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	aggregator := jupiter.NewClient(cfg.JupiterBaseURL, "", http.DefaultClient, logger)

	var wallet *solana.Wallet
	if cfg.WalletPrivateKey != "" {
		wallet, err = solana.NewWalletFromBase58(cfg.WalletPrivateKey)
		if err != nil {
			return fmt.Errorf("failed to load trading wallet: %w", err)
		}
		logger.Info("trading wallet loaded", "pubkey", wallet.PublicKey())
	} else {
		logger.Warn("no trading wallet configured, simulation path only")
	}

	var bundles protect.BundleSender
	if cfg.Protection.BundlingEnabled && cfg.Protection.BundleAuthKey != "" {
		bundles = protect.NewJitoClient(cfg.Protection.BundleRelayURL, cfg.Protection.BundleAuthKey, http.DefaultClient, logger)
		logger.Info("bundle relay configured", "url", cfg.Protection.BundleRelayURL)
	}
	router := protect.NewRouter(cfg.Protection, bundles, store, exec, m, logger)

	eng := engine.New(engine.Params{
		Config:     cfg,
		Aggregator: aggregator,
		Chain:      chain,
		Wallet:     wallet,
		Protector:  router,
		Store:      store,
		Publisher:  publisher,
		Executor:   exec,
		Metrics:    m,
		Logger:     logger,
	})

	tradeCh := make(chan signals.TradeIntent, 16)
	manager := signals.NewManager(cfg.Signals, signals.NewWebsocketDialer(), publisher, m, logger)
	manager.AttachTradeRequests(tradeCh)
	manager.Start(ctx)
	defer manager.Stop()

	// Drain the fire-and-forget trade channel. Each intent executes
	// independently; a failed trade never stops the stream.
	go func() {
		for intent := range tradeCh {
			req := &engine.Request{
				Token:          intent.Token,
				Side:           engine.Side(intent.Side),
				Amount:         intent.Amount,
				MaxSlippagePct: 5,
			}
			if _, err := eng.Execute(ctx, req); err != nil {
				logger.Warn("trade from signal failed",
					"token", intent.Token,
					"error", err,
				)
			}
		}
	}()

	// Consume the merged signal stream. Publication to NATS happens in
	// the manager; this loop just keeps the stream drained.
	go func() {
		for sig := range manager.Signals() {
			logger.Debug("signal received",
				"id", sig.ID,
				"symbol", sig.Symbol,
				"action", sig.Action,
				"source", sig.Source,
			)
		}
	}()

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- metricsServer.ListenAndServe()
	}()
	logger.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("metrics server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server gracefully", "error", err)
		}
		cancel()
		close(tradeCh)
		logger.Info("shutdown complete")
	}
	return nil
}
