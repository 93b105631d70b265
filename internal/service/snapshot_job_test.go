package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth-reserves/internal/types"
)

type fakeInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (c *fakeInvalidator) LatestSnapshotKey() string { return "snapshot:latest" }

func (c *fakeInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys...)
	return nil
}

func newJobFixture() (*fixture, *fakeNotifier, *fakeMirror, *fakeInvalidator, *SnapshotJob) {
	f := newFixture(
		company(companyA, "Alpha", types.CompanyStatusActive, "1000"),
		company(companyB, "Beta", types.CompanyStatusActive, "500"),
	)
	notifier := &fakeNotifier{}
	mirror := &fakeMirror{}
	cache := &fakeInvalidator{}
	job := NewSnapshotJob(f.engine, NewAlertDispatcher(notifier, time.Second), mirror, cache, time.Minute)
	return f, notifier, mirror, cache, job
}

func TestSnapshotJob_RunDeliversSideEffects(t *testing.T) {
	f, notifier, mirror, cache, job := newJobFixture()
	f.snapshots.seed(companyA, testDay.AddDays(-1), "900")

	result, err := job.Run(context.Background(), testDay)
	require.NoError(t, err)
	require.NotNil(t, result.Aggregate)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, companyA, notifier.events[0].CompanyID)
	assert.True(t, notifier.events[0].ReserveDiff.Equal(dec("100")))

	assert.Equal(t, 2, mirror.companies)
	assert.Len(t, mirror.aggregates, 1)
	assert.Equal(t, []string{"snapshot:latest"}, cache.keys)
}

func TestSnapshotJob_PriceFailureStillDeliversAlerts(t *testing.T) {
	f, notifier, mirror, _, job := newJobFixture()
	f.snapshots.seed(companyA, testDay.AddDays(-1), "900")
	f.market.priceErr = errors.New("provider down")

	result, err := job.Run(context.Background(), testDay)
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
	require.NotNil(t, result)

	assert.Len(t, notifier.events, 1)
	assert.Equal(t, 2, mirror.companies)
	assert.Empty(t, mirror.aggregates)
}

func TestSnapshotJob_NotifierFailureIsSwallowed(t *testing.T) {
	f, notifier, _, _, job := newJobFixture()
	f.snapshots.seed(companyA, testDay.AddDays(-1), "900")
	notifier.err = errors.New("webhook returned 500")

	_, err := job.Run(context.Background(), testDay)
	assert.NoError(t, err)
}

func TestSnapshotJob_WorksWithoutMirrorOrCache(t *testing.T) {
	f := newFixture(company(companyA, "Alpha", types.CompanyStatusActive, "1000"))
	job := NewSnapshotJob(f.engine, nil, nil, nil, 0)

	result, err := job.Run(context.Background(), testDay)
	require.NoError(t, err)
	assert.NotNil(t, result.Aggregate)
}

type blockingPrice struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingPrice) ResolveETHUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	close(b.started)
	<-b.release
	return dec("3000"), nil
}

func TestSnapshotJob_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(company(companyA, "Alpha", types.CompanyStatusActive, "1000"))
	price := &blockingPrice{started: make(chan struct{}), release: make(chan struct{})}
	f.engine.price = price
	job := NewSnapshotJob(f.engine, nil, nil, nil, 0)

	done := make(chan error, 1)
	go func() {
		_, err := job.Run(context.Background(), testDay)
		done <- err
	}()
	<-price.started

	_, err := job.Run(context.Background(), testDay)
	assert.True(t, errors.Is(err, ErrRunInProgress))

	close(price.release)
	assert.NoError(t, <-done)
}
