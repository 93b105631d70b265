// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/auth"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/service"
	"github.com/eth-reserves/internal/storage"
	"github.com/eth-reserves/internal/types"
)

// Service interfaces for dependency injection and testing

// SnapshotQueryServiceInterface serves the public snapshot reads
type SnapshotQueryServiceInterface interface {
	Latest(ctx context.Context) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context, from, to types.SnapshotDay) ([]*models.Snapshot, error)
	Series(ctx context.Context, from, to types.SnapshotDay) ([]storage.SeriesPoint, error)
	ListPublicCompanies(ctx context.Context) ([]*service.PublicCompany, error)
	CompanyHistory(ctx context.Context, companyID string, from, to types.SnapshotDay) ([]*models.SnapshotCompany, error)
}

// CompanyServiceInterface manages companies
type CompanyServiceInterface interface {
	CreateCompany(ctx context.Context, input service.CompanyInput) (*models.Company, error)
	UpdateCompany(ctx context.Context, id string, input service.CompanyInput) (*models.Company, error)
	SetStatus(ctx context.Context, id string, status types.CompanyStatus) (*models.Company, error)
	SetReserve(ctx context.Context, id string, reserve decimal.Decimal) (*models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetPublicCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanies(ctx context.Context, status types.CompanyStatus) ([]*models.Company, error)
}

// PurchaseServiceInterface records purchases
type PurchaseServiceInterface interface {
	RecordPurchase(ctx context.Context, input service.PurchaseInput) (*service.PurchaseResult, error)
	ListPurchases(ctx context.Context, companyID string) ([]*models.Purchase, error)
}

// WalletServiceInterface manages company wallets
type WalletServiceInterface interface {
	AddWallet(ctx context.Context, companyID string, input service.WalletInput) (*models.CompanyWallet, error)
	RemoveWallet(ctx context.Context, companyID, walletID string) error
	ListWallets(ctx context.Context, companyID string) ([]*models.CompanyWallet, error)
	RefreshAll(ctx context.Context) (*service.RefreshSummary, error)
	RefreshCompany(ctx context.Context, companyID string) (*service.RefreshSummary, error)
}

// InfluencerServiceInterface manages influencers
type InfluencerServiceInterface interface {
	CreateInfluencer(ctx context.Context, input service.InfluencerInput) (*models.Influencer, error)
	ListInfluencers(ctx context.Context) ([]*models.Influencer, error)
	DeleteInfluencer(ctx context.Context, id string) error
}

// AdminServiceInterface authenticates admins
type AdminServiceInterface interface {
	Login(ctx context.Context, creds service.Credentials) (*service.LoginResult, error)
	Authenticate(token string) (*auth.Claims, error)
}

// SnapshotRunnerInterface triggers a daily run
type SnapshotRunnerInterface interface {
	Run(ctx context.Context, day types.SnapshotDay) (*service.DailyRunResult, error)
}

// Services bundles the handlers' dependencies
type Services struct {
	Snapshots   SnapshotQueryServiceInterface
	Companies   CompanyServiceInterface
	Purchases   PurchaseServiceInterface
	Wallets     WalletServiceInterface
	Influencers InfluencerServiceInterface
	Admins      AdminServiceInterface
	Runner      SnapshotRunnerInterface
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	services   Services
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestsPerMinute int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerMinute)

	// Order matters: recovery must wrap everything that can panic
	s.router.Use(RequestLoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(MetricsMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	// CORS wraps the router so preflights reach it on routes that do not list OPTIONS
	s.handler = CORSMiddleware(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Public read surface
	api.HandleFunc("/snapshots/latest", s.handleLatestSnapshot).Methods("GET")
	api.HandleFunc("/snapshots/series", s.handleSnapshotSeries).Methods("GET")
	api.HandleFunc("/snapshots", s.handleListSnapshots).Methods("GET")
	api.HandleFunc("/companies", s.handleListPublicCompanies).Methods("GET")
	api.HandleFunc("/companies/{id}", s.handleGetPublicCompany).Methods("GET")
	api.HandleFunc("/companies/{id}/snapshots", s.handleCompanyHistory).Methods("GET")
	api.HandleFunc("/influencers", s.handleListInfluencers).Methods("GET")

	// Login is registered before the authenticated admin subrouter so it matches first
	api.HandleFunc("/admin/login", s.handleLogin).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(AdminAuthMiddleware(s.services.Admins))

	admin.HandleFunc("/snapshots/run", s.handleRunSnapshot).Methods("POST")
	admin.HandleFunc("/purchases", s.handleRecordPurchase).Methods("POST")

	admin.HandleFunc("/companies", s.handleAdminListCompanies).Methods("GET")
	admin.HandleFunc("/companies", s.handleCreateCompany).Methods("POST")
	admin.HandleFunc("/companies/{id}", s.handleAdminGetCompany).Methods("GET")
	admin.HandleFunc("/companies/{id}", s.handleUpdateCompany).Methods("PUT")
	admin.HandleFunc("/companies/{id}/status", s.handleSetCompanyStatus).Methods("PUT")
	admin.HandleFunc("/companies/{id}/reserve", s.handleSetCompanyReserve).Methods("PUT")
	admin.HandleFunc("/companies/{id}/purchases", s.handleListPurchases).Methods("GET")

	admin.HandleFunc("/companies/{id}/wallets", s.handleListWallets).Methods("GET")
	admin.HandleFunc("/companies/{id}/wallets", s.handleAddWallet).Methods("POST")
	admin.HandleFunc("/companies/{id}/wallets/refresh", s.handleRefreshCompanyWallets).Methods("POST")
	admin.HandleFunc("/companies/{id}/wallets/{walletId}", s.handleRemoveWallet).Methods("DELETE")
	admin.HandleFunc("/wallets/refresh", s.handleRefreshAllWallets).Methods("POST")

	admin.HandleFunc("/influencers", s.handleCreateInfluencer).Methods("POST")
	admin.HandleFunc("/influencers/{id}", s.handleDeleteInfluencer).Methods("DELETE")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "eth-reserves",
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
