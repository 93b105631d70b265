// Package app wires configuration, storage, adapters and services into the
// components the binaries run.
package app

import (
	"fmt"
	"time"

	"github.com/eth-reserves/internal/adapter"
	"github.com/eth-reserves/internal/auth"
	"github.com/eth-reserves/internal/config"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/service"
	"github.com/eth-reserves/internal/storage"
)

// App holds the long-lived connections and the services built on them
type App struct {
	Config *config.Config

	Postgres   *storage.PostgresDB
	ClickHouse *storage.ClickHouseDB // nil when the series mirror is disabled
	Redis      *storage.RedisCache
	Cache      *storage.CacheService

	Companies   *storage.CompanyRepository
	Wallets     *storage.WalletRepository
	Snapshots   *storage.SnapshotRepository
	Purchases   *storage.PurchaseRepository
	Influencers *storage.InfluencerRepository
	Admins      *storage.AdminRepository
	Series      *storage.SnapshotSeriesRepository // nil when ClickHouse is disabled

	Market *adapter.CachedMarketData

	CompanyService    *service.CompanyService
	PurchaseService   *service.PurchaseService
	WalletService     *service.WalletService
	InfluencerService *service.InfluencerService
	AdminService      *service.AdminService
	QueryService      *service.SnapshotQueryService
	Job               *service.SnapshotJob

	rpcPools []*adapter.RPCPool
}

// InitLogging configures the global logger, attaching Sentry when a DSN is set
func InitLogging(cfg *config.Config, component string) *logging.Logger {
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))

	withSentry, err := logger.AttachSentry(logging.SentryOptions{
		DSN:         cfg.Logging.SentryDSN,
		Environment: cfg.Logging.Environment,
		Tags:        map[string]string{"component": component},
	})
	if err != nil {
		logger.WithError(err).Warn("Sentry disabled")
	} else {
		logger = withSentry
	}

	logger = logger.WithField("component", component)
	logging.SetGlobalLogger(logger)
	return logger
}

// New connects to the stores and builds every service
func New(cfg *config.Config) (*App, error) {
	logger := logging.GetGlobalLogger()
	a := &App{Config: cfg}

	var err error
	a.Postgres, err = storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	a.Redis, err = storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.Cache = storage.NewCacheService(a.Redis, cfg.MarketData.CacheTTL)

	if cfg.Database.ClickHouse.Enabled {
		a.ClickHouse, err = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		a.Series = storage.NewSnapshotSeriesRepository(a.ClickHouse)
	} else {
		logger.Info("ClickHouse disabled; snapshot series served from Postgres")
	}
	logger.Info("Database connections established")

	a.Companies = storage.NewCompanyRepository(a.Postgres)
	a.Wallets = storage.NewWalletRepository(a.Postgres)
	a.Snapshots = storage.NewSnapshotRepository(a.Postgres)
	a.Purchases = storage.NewPurchaseRepository(a.Postgres)
	a.Influencers = storage.NewInfluencerRepository(a.Postgres)
	a.Admins = storage.NewAdminRepository(a.Postgres)

	resolver, err := a.newBalanceResolver()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Market = newMarketData(cfg, a.Cache)

	thresholds := service.ThresholdsFromConfig(cfg.Snapshot)
	reconciler := service.NewCompanyReconciler(a.Snapshots, a.Purchases, a.Market, a.Market, thresholds, cfg.MarketData.ProviderTimeout)
	engine := service.NewSnapshotEngine(a.Companies, a.Snapshots, reconciler, a.Market, service.SnapshotEngineConfig{
		Concurrency:  cfg.Snapshot.Concurrency,
		PriceTimeout: cfg.MarketData.ProviderTimeout,
		Thresholds:   thresholds,
	})

	var notifier adapter.Notifier = adapter.LogNotifier{}
	if cfg.Notifications.WebhookURL != "" {
		notifier = adapter.NewWebhookNotifier(cfg.Notifications.WebhookURL, cfg.Notifications.Timeout)
	}
	dispatcher := service.NewAlertDispatcher(notifier, cfg.Notifications.Timeout)

	// Interfaces stay untyped nil when ClickHouse is off
	var mirror service.SeriesMirror
	var series service.SeriesSource
	if a.Series != nil {
		mirror = a.Series
		series = a.Series
	}
	a.Job = service.NewSnapshotJob(engine, dispatcher, mirror, a.Cache, cfg.Snapshot.RunTimeout)

	a.CompanyService = service.NewCompanyService(a.Companies)
	a.PurchaseService = service.NewPurchaseService(a.Purchases, a.Companies, reconciler)
	a.WalletService = service.NewWalletService(a.Wallets, a.Companies, resolver, cfg.Wallets.Concurrency)
	a.InfluencerService = service.NewInfluencerService(a.Influencers)
	a.QueryService = service.NewSnapshotQueryService(a.Snapshots, a.Companies, series, a.Cache)

	if cfg.Auth.JWTSecret != "" {
		tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create token issuer: %w", err)
		}
		a.AdminService = service.NewAdminService(a.Admins, tokens)
	}

	return a, nil
}

// newBalanceResolver builds one RPC pool per enabled network with endpoints
func (a *App) newBalanceResolver() (*adapter.EthereumBalanceResolver, error) {
	logger := logging.GetGlobalLogger()

	var networks []adapter.NetworkSource
	var timeout time.Duration
	for _, name := range a.Config.Chains.Enabled {
		chainCfg := a.Config.Chains.Chains[name]
		if len(chainCfg.RPCURLs) == 0 {
			logger.WithField("network", name).Warn("Skipping network: no RPC endpoint configured")
			continue
		}

		pool, err := adapter.NewRPCPool(&adapter.RPCPoolConfig{
			Network:   name,
			Endpoints: chainCfg.RPCURLs,
		})
		if err != nil {
			logger.WithError(err).WithField("network", name).Warn("Failed to create RPC pool")
			continue
		}
		a.rpcPools = append(a.rpcPools, pool)
		networks = append(networks, adapter.NetworkSource{Backend: pool, Tokens: adapter.DefaultTokens(name)})

		if chainCfg.Timeout > timeout {
			timeout = chainCfg.Timeout
		}
		logger.WithFields(map[string]interface{}{
			"network":   name,
			"endpoints": len(chainCfg.RPCURLs),
		}).Info("RPC pool initialized")
	}

	if len(networks) == 0 {
		logger.Warn("No RPC pools initialized; wallet balances will not refresh")
	}

	resolver, err := adapter.NewEthereumBalanceResolver(networks, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create balance resolver: %w", err)
	}
	return resolver, nil
}

func newMarketData(cfg *config.Config, cache *storage.CacheService) *adapter.CachedMarketData {
	breakers := adapter.NewProviderBreakers()
	base := adapter.HTTPClientConfig{
		Timeout:        cfg.MarketData.ProviderTimeout,
		RequestsPerSec: cfg.MarketData.RequestsPerSec,
		MaxRetries:     cfg.MarketData.MaxRetries,
		InitialBackoff: 500 * time.Millisecond,
	}

	fmpCfg := base
	fmpCfg.BaseURL = cfg.MarketData.FMPBaseURL
	fmpCfg.Breaker = breakers.Get("fmp")
	fmp := adapter.NewFMPClient(cfg.MarketData.FMPAPIKey, fmpCfg)

	cgCfg := base
	cgCfg.BaseURL = cfg.MarketData.CoinGeckoBaseURL
	cgCfg.Breaker = breakers.Get("coingecko")
	coingecko := adapter.NewCoinGeckoClient(cfg.MarketData.CoinGeckoAPIKey, cgCfg)

	return adapter.NewCachedMarketData(fmp, coingecko, coingecko, cache, time.Minute)
}

// Close releases every connection opened by New
func (a *App) Close() {
	for _, pool := range a.rpcPools {
		pool.Close()
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			logging.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logging.WithError(err).Warn("Error closing Redis connection")
		}
	}
	if a.Postgres != nil {
		a.Postgres.Close()
	}
}
