package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/gallerybilling/pkg/logger"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// StorageSizer reports the bytes a user currently stores.
type StorageSizer interface {
	StorageBytes(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ResourceCounter reports how many galleries a user created since a point in time.
type ResourceCounter interface {
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// Cache stores snapshots between identical queries.
type Cache interface {
	Get(ctx context.Context, userID uuid.UUID, since time.Time) (subscription.UsageSnapshot, bool, error)
	Set(ctx context.Context, userID uuid.UUID, snap subscription.UsageSnapshot) error
}

// Aggregator implements subscription.UsageFetcher.
type Aggregator struct {
	storage   StorageSizer
	resources ResourceCounter
	cache     Cache
	logger    *slog.Logger
}

var _ subscription.UsageFetcher = (*Aggregator)(nil)

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithCache enables snapshot memoization.
func WithCache(c Cache) AggregatorOption {
	return func(a *Aggregator) {
		a.cache = c
	}
}

// WithLogger sets the logger for cache failures. Nil is ignored.
func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator combines storage and resource sources into usage snapshots.
// Panics if either source is nil.
func NewAggregator(storage StorageSizer, resources ResourceCounter, opts ...AggregatorOption) *Aggregator {
	if storage == nil {
		panic("usage: storage sizer cannot be nil")
	}
	if resources == nil {
		panic("usage: resource counter cannot be nil")
	}
	a := &Aggregator{
		storage:   storage,
		resources: resources,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchUsageSnapshot measures storage and counts galleries in parallel.
// Cache errors are logged and never fail the call.
func (a *Aggregator) FetchUsageSnapshot(ctx context.Context, userID uuid.UUID, since time.Time) (subscription.UsageSnapshot, error) {
	if a.cache != nil {
		snap, ok, err := a.cache.Get(ctx, userID, since)
		if err != nil {
			a.logger.WarnContext(ctx, "usage cache read failed", logger.UserID(userID), logger.Error(err))
		}
		if ok {
			return snap, nil
		}
	}

	var (
		bytes   int64
		created int64
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		var err error
		bytes, err = a.storage.StorageBytes(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		created, err = a.resources.CountSince(gctx, userID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return subscription.UsageSnapshot{}, err
	}

	snap := subscription.UsageSnapshot{
		TotalStorageGB:        subscription.BytesToGB(bytes),
		ResourcesCreatedSince: created,
		Since:                 since,
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, userID, snap); err != nil {
			a.logger.WarnContext(ctx, "usage cache write failed", logger.UserID(userID), logger.Error(err))
		}
	}
	return snap, nil
}
