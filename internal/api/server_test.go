package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/auth"
	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/service"
	"github.com/eth-reserves/internal/storage"
	"github.com/eth-reserves/internal/types"
)

// Mock services for testing

type mockSnapshotQueries struct {
	latestFunc  func(ctx context.Context) (*models.Snapshot, error)
	listFunc    func(ctx context.Context, from, to types.SnapshotDay) ([]*models.Snapshot, error)
	historyFunc func(ctx context.Context, id string, from, to types.SnapshotDay) ([]*models.SnapshotCompany, error)
}

func (m *mockSnapshotQueries) Latest(ctx context.Context) (*models.Snapshot, error) {
	if m.latestFunc != nil {
		return m.latestFunc(ctx)
	}
	return nil, internalerrors.NewNotFoundError("snapshot", "latest")
}

func (m *mockSnapshotQueries) ListSnapshots(ctx context.Context, from, to types.SnapshotDay) ([]*models.Snapshot, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, from, to)
	}
	return []*models.Snapshot{}, nil
}

func (m *mockSnapshotQueries) Series(ctx context.Context, from, to types.SnapshotDay) ([]storage.SeriesPoint, error) {
	return []storage.SeriesPoint{}, nil
}

func (m *mockSnapshotQueries) ListPublicCompanies(ctx context.Context) ([]*service.PublicCompany, error) {
	return []*service.PublicCompany{}, nil
}

func (m *mockSnapshotQueries) CompanyHistory(ctx context.Context, id string, from, to types.SnapshotDay) ([]*models.SnapshotCompany, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, id, from, to)
	}
	return []*models.SnapshotCompany{}, nil
}

type mockCompanyService struct {
	createFunc func(ctx context.Context, input service.CompanyInput) (*models.Company, error)
	getFunc    func(ctx context.Context, id string) (*models.Company, error)
}

func (m *mockCompanyService) CreateCompany(ctx context.Context, input service.CompanyInput) (*models.Company, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}
	return &models.Company{ID: "company-1", Name: input.Name, Status: types.CompanyStatusPending}, nil
}

func (m *mockCompanyService) UpdateCompany(ctx context.Context, id string, input service.CompanyInput) (*models.Company, error) {
	return &models.Company{ID: id, Name: input.Name}, nil
}

func (m *mockCompanyService) SetStatus(ctx context.Context, id string, status types.CompanyStatus) (*models.Company, error) {
	return &models.Company{ID: id, Status: status}, nil
}

func (m *mockCompanyService) SetReserve(ctx context.Context, id string, reserve decimal.Decimal) (*models.Company, error) {
	return &models.Company{ID: id, CurrentReserve: reserve}, nil
}

func (m *mockCompanyService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &models.Company{ID: id}, nil
}

func (m *mockCompanyService) GetPublicCompany(ctx context.Context, id string) (*models.Company, error) {
	return m.GetCompany(ctx, id)
}

func (m *mockCompanyService) ListCompanies(ctx context.Context, status types.CompanyStatus) ([]*models.Company, error) {
	return []*models.Company{}, nil
}

type mockPurchaseService struct {
	calls      int
	recordFunc func(ctx context.Context, input service.PurchaseInput) (*service.PurchaseResult, error)
}

func (m *mockPurchaseService) RecordPurchase(ctx context.Context, input service.PurchaseInput) (*service.PurchaseResult, error) {
	m.calls++
	if m.recordFunc != nil {
		return m.recordFunc(ctx, input)
	}
	return &service.PurchaseResult{
		Purchase:       &models.Purchase{ID: "purchase-1", CompanyID: input.CompanyID, Amount: input.Amount, TotalCost: input.TotalCost, Type: input.Type},
		CurrentReserve: decimal.NewFromInt(110),
	}, nil
}

func (m *mockPurchaseService) ListPurchases(ctx context.Context, companyID string) ([]*models.Purchase, error) {
	return []*models.Purchase{}, nil
}

type mockWalletService struct {
	refreshed int
}

func (m *mockWalletService) AddWallet(ctx context.Context, companyID string, input service.WalletInput) (*models.CompanyWallet, error) {
	return &models.CompanyWallet{ID: "wallet-1", CompanyID: companyID, Address: input.Address}, nil
}

func (m *mockWalletService) RemoveWallet(ctx context.Context, companyID, walletID string) error {
	return nil
}

func (m *mockWalletService) ListWallets(ctx context.Context, companyID string) ([]*models.CompanyWallet, error) {
	return []*models.CompanyWallet{}, nil
}

func (m *mockWalletService) RefreshAll(ctx context.Context) (*service.RefreshSummary, error) {
	m.refreshed++
	return &service.RefreshSummary{Scanned: 3, Updated: 3}, nil
}

func (m *mockWalletService) RefreshCompany(ctx context.Context, companyID string) (*service.RefreshSummary, error) {
	return &service.RefreshSummary{Scanned: 1, Updated: 1}, nil
}

type mockInfluencerService struct{}

func (m *mockInfluencerService) CreateInfluencer(ctx context.Context, input service.InfluencerInput) (*models.Influencer, error) {
	return &models.Influencer{ID: "inf-1", Name: input.Name}, nil
}

func (m *mockInfluencerService) ListInfluencers(ctx context.Context) ([]*models.Influencer, error) {
	return []*models.Influencer{}, nil
}

func (m *mockInfluencerService) DeleteInfluencer(ctx context.Context, id string) error {
	return nil
}

const testToken = "valid-token"

type mockAdminService struct{}

func (m *mockAdminService) Login(ctx context.Context, creds service.Credentials) (*service.LoginResult, error) {
	if creds.Password != "correct horse" {
		return nil, internalerrors.NewUnauthorizedError("invalid email or password")
	}
	return &service.LoginResult{Token: testToken, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockAdminService) Authenticate(token string) (*auth.Claims, error) {
	if token != testToken {
		return nil, internalerrors.NewUnauthorizedError("invalid or expired token")
	}
	claims := &auth.Claims{Email: "ops@example.com"}
	claims.Subject = "admin-1"
	return claims, nil
}

type mockRunner struct {
	calls   int
	runFunc func(ctx context.Context, day types.SnapshotDay) (*service.DailyRunResult, error)
}

func (m *mockRunner) Run(ctx context.Context, day types.SnapshotDay) (*service.DailyRunResult, error) {
	m.calls++
	if m.runFunc != nil {
		return m.runFunc(ctx, day)
	}
	return &service.DailyRunResult{Day: day}, nil
}

type testServer struct {
	*Server
	snapshots *mockSnapshotQueries
	companies *mockCompanyService
	purchases *mockPurchaseService
	wallets   *mockWalletService
	runner    *mockRunner
}

// Helper function to create test server
func createTestServer() *testServer {
	ts := &testServer{
		snapshots: &mockSnapshotQueries{},
		companies: &mockCompanyService{},
		purchases: &mockPurchaseService{},
		wallets:   &mockWalletService{},
		runner:    &mockRunner{},
	}
	ts.Server = NewServer(&ServerConfig{Host: "localhost", Port: "0"}, Services{
		Snapshots:   ts.snapshots,
		Companies:   ts.companies,
		Purchases:   ts.purchases,
		Wallets:     ts.wallets,
		Influencers: &mockInfluencerService{},
		Admins:      &mockAdminService{},
		Runner:      ts.runner,
	})
	return ts
}

func TestHealth(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := createTestServer()

	for _, path := range []string{"/api/admin/purchases", "/api/admin/companies/c-1/wallets/w-1", "/api/snapshots/latest"} {
		req := httptest.NewRequest("OPTIONS", path, nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", path, w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Errorf("%s: missing Access-Control-Allow-Methods", path)
		}
		if w.Header().Get("Access-Control-Allow-Origin") == "" {
			t.Errorf("%s: missing Access-Control-Allow-Origin", path)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60)
	limiter := rl.getLimiter("10.0.0.1")

	allowed := 0
	for i := 0; i < 20; i++ {
		if limiter.Allow() {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("Expected burst of 10, got %d", allowed)
	}
	if rl.getLimiter("10.0.0.1") != limiter {
		t.Error("Expected the same limiter for the same client")
	}
	if rl.getLimiter("10.0.0.2") == limiter {
		t.Error("Expected separate limiters per client")
	}
}

func TestRateLimiter_DropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(60)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(time.Hour)
	rl.getLimiter("b")

	if _, ok := rl.limiters["a"]; ok {
		t.Error("Expected idle limiter to be dropped")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0).getLimiter("a")
	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatal("Expected unlimited limiter")
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(60)
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest("GET", "/api/snapshots/latest", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 after burst, got %d", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q", got)
	}

	var body ErrorResponse
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Error.Code != "RATE_LIMIT_EXCEEDED" || body.Error.Details["retryAfter"] != float64(60) {
		t.Errorf("Unexpected error body: %+v", body.Error)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := clientKey(req); got != "192.0.2.1" {
		t.Errorf("clientKey() = %s", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientKey(req); got != "203.0.113.7" {
		t.Errorf("clientKey() = %s", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}
