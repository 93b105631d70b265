package service

import (
	"context"
	"errors"
	"sync"
	"time"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// ErrRunInProgress is returned when a daily run is triggered while another is running
var ErrRunInProgress = internalerrors.NewConflictError("RUN_IN_PROGRESS", "a snapshot run is already in progress")

// SeriesMirror copies snapshots into the analytics store
type SeriesMirror interface {
	MirrorAggregate(ctx context.Context, s *models.Snapshot) error
	MirrorCompanySnapshots(ctx context.Context, snapshots []*models.SnapshotCompany) error
}

// SnapshotCache drops cached read models after a run
type SnapshotCache interface {
	LatestSnapshotKey() string
	Invalidate(ctx context.Context, keys ...string) error
}

// SnapshotJob wraps the engine with the side effects of a run: alert delivery,
// the analytics mirror and cache invalidation. Only one run executes at a time.
type SnapshotJob struct {
	engine     *SnapshotEngine
	dispatcher *AlertDispatcher
	mirror     SeriesMirror
	cache      SnapshotCache
	runTimeout time.Duration

	mu sync.Mutex
}

// NewSnapshotJob creates a job. mirror and cache may be nil.
func NewSnapshotJob(engine *SnapshotEngine, dispatcher *AlertDispatcher, mirror SeriesMirror, cache SnapshotCache, runTimeout time.Duration) *SnapshotJob {
	return &SnapshotJob{
		engine:     engine,
		dispatcher: dispatcher,
		mirror:     mirror,
		cache:      cache,
		runTimeout: runTimeout,
	}
}

// Run executes the daily run for day and performs its side effects.
// Alerts are dispatched even when the run fails after company reconciliation.
func (j *SnapshotJob) Run(ctx context.Context, day types.SnapshotDay) (*DailyRunResult, error) {
	if !j.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer j.mu.Unlock()

	if j.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.runTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := j.engine.RunDaily(ctx, day)
	metrics.SnapshotRunDuration.Observe(time.Since(start).Seconds())

	if result != nil {
		// detached so a timed-out run still delivers and mirrors what it wrote
		sideCtx := context.WithoutCancel(ctx)
		if j.dispatcher != nil && len(result.Alerts) > 0 {
			j.dispatcher.Dispatch(sideCtx, result.Alerts)
		}
		j.mirrorResult(sideCtx, result)
		j.invalidate(sideCtx)
	}

	switch {
	case err == nil:
		metrics.SnapshotRuns.WithLabelValues("ok").Inc()
		metrics.AggregateReserve.Set(result.Aggregate.TotalReserve.InexactFloat64())
		metrics.ETHPrice.Set(result.Aggregate.ETHPrice.InexactFloat64())
	case errors.Is(err, ErrPriceUnavailable):
		metrics.SnapshotRuns.WithLabelValues("price_unavailable").Inc()
	default:
		metrics.SnapshotRuns.WithLabelValues("failed").Inc()
	}
	return result, err
}

func (j *SnapshotJob) mirrorResult(ctx context.Context, result *DailyRunResult) {
	if j.mirror == nil {
		return
	}
	logger := logging.FromContext(ctx).WithField("day", result.Day.String())

	if err := j.mirror.MirrorCompanySnapshots(ctx, result.Companies); err != nil {
		logger.WithError(err).Warn("failed to mirror company snapshots")
	}
	if result.Aggregate != nil {
		if err := j.mirror.MirrorAggregate(ctx, result.Aggregate); err != nil {
			logger.WithError(err).Warn("failed to mirror aggregate snapshot")
		}
	}
}

func (j *SnapshotJob) invalidate(ctx context.Context) {
	if j.cache == nil {
		return
	}
	if err := j.cache.Invalidate(ctx, j.cache.LatestSnapshotKey()); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to invalidate snapshot cache")
	}
}
