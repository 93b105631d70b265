// Package main provides the API server entry point for the reserve tracker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eth-reserves/internal/api"
	"github.com/eth-reserves/internal/app"
	"github.com/eth-reserves/internal/config"
	"github.com/eth-reserves/internal/logging"
)

func main() {
	fmt.Println("ETH Reserves API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.InitLogging(cfg, "server")
	defer logging.Flush(2 * time.Second)

	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required to serve the admin API")
	}

	a, err := app.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Snapshot.RunTimeout + 30*time.Second, // manual runs hold the request open
		IdleTimeout:       60 * time.Second,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
	}

	server := api.NewServer(serverConfig, api.Services{
		Snapshots:   a.QueryService,
		Companies:   a.CompanyService,
		Purchases:   a.PurchaseService,
		Wallets:     a.WalletService,
		Influencers: a.InfluencerService,
		Admins:      a.AdminService,
		Runner:      a.Job,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
