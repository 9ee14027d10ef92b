package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"spendwise/internal/core"
	"spendwise/internal/nudge"
	"spendwise/internal/storage"
)

// NudgeService recomputes and serves the stored nudge list.
type NudgeService struct {
	store    storage.NudgeStore
	insights *InsightsService
	engine   *nudge.Engine

	// Suggest runs are serialized so the stored list always comes from one
	// complete evaluation.
	mu sync.Mutex
}

func NewNudgeService(store storage.NudgeStore, insights *InsightsService, engine *nudge.Engine) *NudgeService {
	return &NudgeService{store: store, insights: insights, engine: engine}
}

// Suggest evaluates every nudge rule over p and replaces the stored list
// with the result. Running it twice over unchanged data stores the same list.
func (s *NudgeService) Suggest(ctx context.Context, p core.Period) ([]core.Nudge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggest(ctx, p)
}

func (s *NudgeService) suggest(ctx context.Context, p core.Period) ([]core.Nudge, error) {
	ins, txns, err := s.insights.Snapshot(ctx, p)
	if err != nil {
		return nil, err
	}

	nudges, err := s.engine.Evaluate(ctx, ins, txns)
	if err != nil {
		return nil, fmt.Errorf("evaluate nudges: %w", err)
	}
	if nudges == nil {
		nudges = []core.Nudge{}
	}

	if err := s.store.ReplaceNudges(ctx, p, nudges); err != nil {
		return nil, fmt.Errorf("store nudges: %w", err)
	}

	slog.InfoContext(ctx, "Nudges recomputed", "period", p.String(), "count", len(nudges))
	return nudges, nil
}

// Refresh recomputes the stored list over the period it was last suggested
// for, falling back to the current calendar month when nothing was stored.
func (s *NudgeService) Refresh(ctx context.Context) ([]core.Nudge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok, err := s.store.NudgePeriod(ctx)
	if err != nil {
		return nil, fmt.Errorf("read nudge period: %w", err)
	}
	if !ok {
		p = core.CurrentMonthPeriod(s.insights.Now())
	}
	return s.suggest(ctx, p)
}

// List returns the stored nudges in evaluation order.
func (s *NudgeService) List(ctx context.Context) ([]core.Nudge, error) {
	nudges, err := s.store.ListNudges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nudges: %w", err)
	}
	if nudges == nil {
		nudges = []core.Nudge{}
	}
	return nudges, nil
}
