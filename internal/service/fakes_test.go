package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/storage"
	"github.com/eth-reserves/internal/types"
)

// In-memory stores shared by the service tests

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeCompanyStore struct {
	mu         sync.Mutex
	companies  map[string]*models.Company
	walletSums map[string]decimal.Decimal
}

func newFakeCompanyStore(companies ...*models.Company) *fakeCompanyStore {
	s := &fakeCompanyStore{
		companies:  make(map[string]*models.Company),
		walletSums: make(map[string]decimal.Decimal),
	}
	for _, c := range companies {
		s.companies[c.ID] = c
	}
	return s
}

func (s *fakeCompanyStore) withWalletSum(c *models.Company) *models.CompanyWithWalletSum {
	out := &models.CompanyWithWalletSum{Company: *c}
	if sum, ok := s.walletSums[c.ID]; ok {
		out.WalletSum = decimal.NewNullDecimal(sum)
	}
	return out
}

func (s *fakeCompanyStore) ListForSnapshot(ctx context.Context) ([]*models.CompanyWithWalletSum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CompanyWithWalletSum
	for _, c := range s.companies {
		if c.Status != types.CompanyStatusInactive {
			out = append(out, s.withWalletSum(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeCompanyStore) GetWithWalletSum(ctx context.Context, id string) (*models.CompanyWithWalletSum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, internalerrors.NewNotFoundError("company", id)
	}
	return s.withWalletSum(c), nil
}

func (s *fakeCompanyStore) Create(ctx context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", len(s.companies)+1)
	}
	s.companies[c.ID] = c
	return nil
}

func (s *fakeCompanyStore) GetByID(ctx context.Context, id string) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, internalerrors.NewNotFoundError("company", id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCompanyStore) List(ctx context.Context, status types.CompanyStatus) ([]*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Company
	for _, c := range s.companies {
		if status == "" || c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeCompanyStore) Update(ctx context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[c.ID]; !ok {
		return internalerrors.NewNotFoundError("company", c.ID)
	}
	cp := *c
	s.companies[c.ID] = &cp
	return nil
}

func (s *fakeCompanyStore) SetReserve(ctx context.Context, id string, reserve decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return internalerrors.NewNotFoundError("company", id)
	}
	c.CurrentReserve = reserve
	return nil
}

func (s *fakeCompanyStore) status(id string) types.CompanyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.companies[id]; ok {
		return c.Status
	}
	return ""
}

type fakeSnapshotStore struct {
	mu         sync.Mutex
	companies  *fakeCompanyStore
	rows       map[string]*models.SnapshotCompany
	aggregates map[string]*models.Snapshot
	failFor    map[string]bool
	upserts    int
}

func newFakeSnapshotStore(companies *fakeCompanyStore) *fakeSnapshotStore {
	return &fakeSnapshotStore{
		companies:  companies,
		rows:       make(map[string]*models.SnapshotCompany),
		aggregates: make(map[string]*models.Snapshot),
		failFor:    make(map[string]bool),
	}
}

func rowKey(companyID string, day types.SnapshotDay) string {
	return companyID + "|" + day.String()
}

func (s *fakeSnapshotStore) seed(companyID string, day types.SnapshotDay, reserve string) {
	s.rows[rowKey(companyID, day)] = &models.SnapshotCompany{
		ID:        "seed-" + rowKey(companyID, day),
		CompanyID: companyID,
		Day:       day,
		Reserve:   dec(reserve),
	}
}

func (s *fakeSnapshotStore) GetCompanySnapshot(ctx context.Context, companyID string, day types.SnapshotDay) (*models.SnapshotCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[rowKey(companyID, day)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeSnapshotStore) LatestCompanySnapshotBefore(ctx context.Context, companyID string, day types.SnapshotDay) (*models.SnapshotCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.SnapshotCompany
	for _, row := range s.rows {
		if row.CompanyID != companyID || !row.Day.Before(day) {
			continue
		}
		if latest == nil || row.Day.After(latest.Day) {
			latest = row
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeSnapshotStore) UpsertCompanySnapshot(ctx context.Context, snap *models.SnapshotCompany) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[snap.CompanyID] {
		return errors.New("connection reset")
	}
	s.upserts++

	key := rowKey(snap.CompanyID, snap.Day)
	if existing, ok := s.rows[key]; ok {
		snap.ID = existing.ID
		if !snap.MarketCap.Valid {
			snap.MarketCap = existing.MarketCap
		}
		if !snap.SharesOutstanding.Valid {
			snap.SharesOutstanding = existing.SharesOutstanding
		}
	} else if snap.ID == "" {
		snap.ID = fmt.Sprintf("snap-%d", len(s.rows)+1)
	}
	cp := *snap
	s.rows[key] = &cp
	return nil
}

func (s *fakeSnapshotStore) ListCompanySnapshotsForDay(ctx context.Context, day types.SnapshotDay) ([]*models.EligibleSnapshotCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.EligibleSnapshotCompany
	for _, row := range s.rows {
		if row.Day.Equal(day) {
			out = append(out, &models.EligibleSnapshotCompany{
				SnapshotCompany: *row,
				Status:          s.companies.status(row.CompanyID),
			})
		}
	}
	return out, nil
}

func (s *fakeSnapshotStore) LatestAggregateBefore(ctx context.Context, day types.SnapshotDay) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Snapshot
	for _, a := range s.aggregates {
		if a.Day.Before(day) && (latest == nil || a.Day.After(latest.Day)) {
			latest = a
		}
	}
	return latest, nil
}

func (s *fakeSnapshotStore) LatestAggregate(ctx context.Context) (*models.Snapshot, error) {
	return s.LatestAggregateBefore(ctx, types.DayOf(time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *fakeSnapshotStore) UpsertAggregate(ctx context.Context, a *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.aggregates[a.Day.String()]; ok {
		a.ID = existing.ID
	} else if a.ID == "" {
		a.ID = fmt.Sprintf("agg-%d", len(s.aggregates)+1)
	}
	cp := *a
	s.aggregates[a.Day.String()] = &cp
	return nil
}

func (s *fakeSnapshotStore) ListAggregates(ctx context.Context, from, to types.SnapshotDay) ([]*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Snapshot
	for _, a := range s.aggregates {
		if !a.Day.Before(from) && !a.Day.After(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (s *fakeSnapshotStore) ListCompanyHistory(ctx context.Context, companyID string, from, to types.SnapshotDay) ([]*models.SnapshotCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SnapshotCompany
	for _, row := range s.rows {
		if row.CompanyID == companyID && !row.Day.Before(from) && !row.Day.After(to) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (s *fakeSnapshotStore) rowsForDay(day types.SnapshotDay) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.Day.Equal(day) {
			n++
		}
	}
	return n
}

type fakePurchaseStore struct {
	mu        sync.Mutex
	companies *fakeCompanyStore
	purchases []*models.Purchase
}

func (s *fakePurchaseStore) CreateAndIncrementReserve(ctx context.Context, p *models.Purchase) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.companies.GetByID(ctx, p.CompanyID)
	if err != nil {
		return decimal.Zero, err
	}
	p.ID = fmt.Sprintf("purchase-%d", len(s.purchases)+1)
	p.CreatedAt = testNow
	s.purchases = append(s.purchases, p)

	reserve := c.CurrentReserve.Add(p.Amount)
	if err := s.companies.SetReserve(ctx, p.CompanyID, reserve); err != nil {
		return decimal.Zero, err
	}
	return reserve, nil
}

func (s *fakePurchaseStore) ListByCompany(ctx context.Context, companyID string) ([]*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Purchase
	for _, p := range s.purchases {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePurchaseStore) SumTotalCost(ctx context.Context, companyID string) (decimal.NullDecimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum decimal.NullDecimal
	for _, p := range s.purchases {
		if p.CompanyID == companyID {
			sum = decimal.NewNullDecimal(sum.Decimal.Add(p.TotalCost))
		}
	}
	return sum, nil
}

type fakeMarket struct {
	mu         sync.Mutex
	equity     map[string]*types.MarketInfo
	crypto     map[string]*types.MarketInfo
	equityErr  error
	cryptoErr  error
	price      decimal.Decimal
	priceErr   error
	priceCalls int
}

func (m *fakeMarket) ResolveEquityInfo(ctx context.Context, ticker string) (*types.MarketInfo, error) {
	if m.equityErr != nil {
		return nil, m.equityErr
	}
	if info, ok := m.equity[ticker]; ok {
		return info, nil
	}
	return nil, errors.New("symbol not found")
}

func (m *fakeMarket) ResolveCryptoInfo(ctx context.Context, symbol string) (*types.MarketInfo, error) {
	if m.cryptoErr != nil {
		return nil, m.cryptoErr
	}
	if info, ok := m.crypto[symbol]; ok {
		return info, nil
	}
	return nil, errors.New("symbol not found")
}

func (m *fakeMarket) ResolveETHUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	m.priceCalls++
	m.mu.Unlock()
	if m.priceErr != nil {
		return decimal.Zero, m.priceErr
	}
	return m.price, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []types.AlertEvent
	err    error
}

func (n *fakeNotifier) SendChangeAlert(ctx context.Context, event types.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

type fakeMirror struct {
	mu         sync.Mutex
	aggregates []*models.Snapshot
	companies  int
}

func (m *fakeMirror) MirrorAggregate(ctx context.Context, s *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates = append(m.aggregates, s)
	return nil
}

func (m *fakeMirror) MirrorCompanySnapshots(ctx context.Context, snapshots []*models.SnapshotCompany) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies += len(snapshots)
	return nil
}

type fakeSeries struct {
	points []storage.SeriesPoint
	err    error
}

func (f *fakeSeries) AggregateSeries(ctx context.Context, from, to types.SnapshotDay) ([]storage.SeriesPoint, error) {
	return f.points, f.err
}

// fixture wires an engine over the in-memory stores
type fixture struct {
	companies  *fakeCompanyStore
	snapshots  *fakeSnapshotStore
	purchases  *fakePurchaseStore
	market     *fakeMarket
	reconciler *CompanyReconciler
	engine     *SnapshotEngine
}

func newFixture(companies ...*models.Company) *fixture {
	cs := newFakeCompanyStore(companies...)
	ss := newFakeSnapshotStore(cs)
	ps := &fakePurchaseStore{companies: cs}
	market := &fakeMarket{
		equity: make(map[string]*types.MarketInfo),
		crypto: make(map[string]*types.MarketInfo),
		price:  dec("3500"),
	}

	reconciler := NewCompanyReconciler(ss, ps, market, market, DefaultThresholds(), time.Second)
	reconciler.now = fixedNow
	engine := NewSnapshotEngine(cs, ss, reconciler, market, SnapshotEngineConfig{
		Concurrency: 4,
		Thresholds:  DefaultThresholds(),
	})
	engine.now = fixedNow

	return &fixture{
		companies:  cs,
		snapshots:  ss,
		purchases:  ps,
		market:     market,
		reconciler: reconciler,
		engine:     engine,
	}
}

func company(id, name string, status types.CompanyStatus, reserve string) *models.Company {
	return &models.Company{
		ID:             id,
		Name:           name,
		AccountingType: types.AccountingSelfReported,
		Status:         status,
		CurrentReserve: dec(reserve),
	}
}

const (
	companyA = "11111111-1111-1111-1111-111111111111"
	companyB = "22222222-2222-2222-2222-222222222222"
	companyC = "33333333-3333-3333-3333-333333333333"
	companyD = "44444444-4444-4444-4444-444444444444"
)
