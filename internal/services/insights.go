package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/insights"
	"spendwise/internal/storage"
)

// MaxListedTransactions bounds the transactions listing.
const MaxListedTransactions = 500

// InsightsService serves the read side: insights snapshots and transaction
// listings. Snapshots are cached per period and store revision, so a write
// committed by any process makes older entries unreachable.
type InsightsService struct {
	store storage.TransactionStore
	agg   *insights.Aggregator
	cache cache.Cache[core.Insights]
	group singleflight.Group
	gen   atomic.Uint64
}

// NewInsightsService builds the read service. A nil cache disables caching.
func NewInsightsService(store storage.TransactionStore, agg *insights.Aggregator, c cache.Cache[core.Insights]) *InsightsService {
	if agg == nil {
		agg = insights.NewAggregator(insights.DefaultTopMerchants)
	}
	return &InsightsService{store: store, agg: agg, cache: c}
}

// Insights returns the snapshot for p. The returned maps are shared with the
// cache and must not be modified.
func (s *InsightsService) Insights(ctx context.Context, p core.Period) (core.Insights, error) {
	rev, err := s.store.Revision(ctx)
	if err != nil {
		return core.Insights{}, fmt.Errorf("read store revision: %w", err)
	}
	// Elapsed days depend on today, so the day is part of the key. Keying on
	// the revision also keeps a request from joining a computation that
	// started before the latest commit.
	key := fmt.Sprintf("%s@%s#%d", p, core.DateOf(s.agg.Now()), rev)
	if s.cache != nil {
		if ins, ok := s.cache.Get(key); ok {
			return ins, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		gen := s.gen.Load()
		ins, _, err := s.Snapshot(ctx, p)
		if err != nil {
			return core.Insights{}, err
		}
		if s.cache != nil && s.gen.Load() == gen {
			s.cache.Set(key, ins)
		}
		return ins, nil
	})
	if err != nil {
		return core.Insights{}, err
	}
	return v.(core.Insights), nil
}

// Snapshot computes uncached insights for p together with the transactions
// they were computed from.
func (s *InsightsService) Snapshot(ctx context.Context, p core.Period) (core.Insights, []core.Transaction, error) {
	txns, err := s.store.Query(ctx, p)
	if err != nil {
		return core.Insights{}, nil, fmt.Errorf("query %s: %w", p, err)
	}
	return s.agg.Compute(p, txns), txns, nil
}

// Transactions lists at most MaxListedTransactions rows of p in stored
// order and reports whether the list was cut.
func (s *InsightsService) Transactions(ctx context.Context, p core.Period) ([]core.Transaction, bool, error) {
	txns, err := s.store.Query(ctx, p)
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", p, err)
	}
	if len(txns) > MaxListedTransactions {
		return txns[:MaxListedTransactions], true, nil
	}
	return txns, false, nil
}

// Transaction returns one stored transaction by id.
func (s *InsightsService) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.Get(ctx, id)
}

// Now is the clock the aggregator measures elapsed days against.
func (s *InsightsService) Now() time.Time {
	return s.agg.Now()
}

// Invalidate drops every cached snapshot. Computations already in flight
// finish but are not cached.
func (s *InsightsService) Invalidate() {
	s.gen.Add(1)
	if s.cache != nil {
		s.cache.Purge()
	}
}
