// Package main provides the wallet balance refresh worker for the reserve tracker.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/eth-reserves/internal/app"
	"github.com/eth-reserves/internal/config"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/service"
)

func main() {
	fmt.Println("ETH Reserves Wallet Worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.InitLogging(cfg, "worker")
	defer logging.Flush(2 * time.Second)

	a, err := app.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{
		"interval":    cfg.Wallets.RefreshInterval.String(),
		"concurrency": cfg.Wallets.Concurrency,
	}).Info("Worker started")

	runLoop(ctx, a.WalletService, cfg.Wallets.RefreshInterval)

	logger.Info("Worker stopped")
}

// runLoop refreshes immediately, then once per interval until ctx is done
func runLoop(ctx context.Context, wallets *service.WalletService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refresh(ctx, wallets)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refresh(ctx context.Context, wallets *service.WalletService) {
	logger := logging.GetGlobalLogger()
	start := time.Now()

	summary, err := wallets.RefreshAll(ctx)
	if err != nil {
		logger.WithError(err).Error("Wallet refresh failed")
		return
	}

	logger.WithFields(map[string]interface{}{
		"scanned":    summary.Scanned,
		"updated":    summary.Updated,
		"failed":     summary.Failed,
		"durationMs": time.Since(start).Milliseconds(),
	}).Info("Wallet refresh completed")
}
