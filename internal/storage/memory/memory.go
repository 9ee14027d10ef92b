// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

type Store struct {
	mu          sync.RWMutex
	txns        []core.Transaction
	byID        map[string]int
	revision    int64
	nudges      []core.Nudge
	nudgePeriod core.Period
	hasNudges   bool
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{byID: map[string]int{}}
}

// Ingest builds the post-ingest slice aside and swaps it in under the write
// lock, so readers never observe a partial replace.
func (s *Store) Ingest(_ context.Context, plan storage.IngestPlan) (storage.IngestResult, error) {
	if err := plan.Validate(); err != nil {
		return storage.IngestResult{}, err
	}
	scope := map[core.Month]bool{}
	for _, m := range plan.ReplaceScope() {
		scope[m] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]core.Transaction, 0, len(s.txns)+len(plan.Rows))
	deleted := 0
	for _, t := range s.txns {
		if scope[t.Month()] {
			deleted++
			continue
		}
		next = append(next, t)
	}
	next = append(next, plan.Rows...)

	index, err := indexByID(next)
	if err != nil {
		return storage.IngestResult{}, &core.StorageError{Op: "ingest", Err: err}
	}
	s.txns, s.byID = next, index
	s.revision++
	return storage.IngestResult{
		Created: len(plan.Rows),
		Deleted: deleted,
		Months:  plan.TouchedMonths(),
	}, nil
}

func (s *Store) Query(_ context.Context, p core.Period) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, 0)
	for _, t := range s.txns {
		if p.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return core.Transaction{}, &core.NotFoundError{Resource: "transaction", ID: id}
	}
	return s.txns[i], nil
}

func (s *Store) Recategorize(_ context.Context, categorize func(string) string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.txns {
		c := categorize(s.txns[i].Merchant)
		if c != s.txns[i].Category {
			s.txns[i].Category = c
			changed++
		}
	}
	if changed > 0 {
		s.revision++
	}
	return changed, nil
}

func (s *Store) Revision(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision, nil
}

func (s *Store) ReplaceNudges(_ context.Context, p core.Period, nudges []core.Nudge) error {
	cp := make([]core.Nudge, len(nudges))
	for i, n := range nudges {
		n.TriggeredBy = maps.Clone(n.TriggeredBy)
		cp[i] = n
	}
	s.mu.Lock()
	s.nudges, s.nudgePeriod, s.hasNudges = cp, p, true
	s.mu.Unlock()
	return nil
}

func (s *Store) NudgePeriod(context.Context) (core.Period, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nudgePeriod, s.hasNudges, nil
}

func (s *Store) ListNudges(_ context.Context) ([]core.Nudge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Nudge{}, s.nudges...), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func indexByID(txns []core.Transaction) (map[string]int, error) {
	index := make(map[string]int, len(txns))
	for i, t := range txns {
		if _, dup := index[t.ID]; dup {
			return nil, errDuplicateID(t.ID)
		}
		index[t.ID] = i
	}
	return index, nil
}

type errDuplicateID string

func (e errDuplicateID) Error() string {
	return "duplicate transaction id " + string(e)
}
