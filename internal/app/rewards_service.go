package app

import (
	"context"
	"sync"

	"fightlog/internal/domain"
	"fightlog/internal/gamification"
	"fightlog/internal/stats"
)

// RewardsService evaluates and reports badges, quests, challenges and rank.
type RewardsService struct {
	insights  *InsightsService
	evaluator *gamification.Evaluator

	// mu serializes evaluation together with its batch write.
	mu sync.Mutex
}

// NewRewardsService creates a RewardsService.
func NewRewardsService(insights *InsightsService, evaluator *gamification.Evaluator) *RewardsService {
	return &RewardsService{insights: insights, evaluator: evaluator}
}

func (s *RewardsService) run(ctx context.Context) (stats.Summary, gamification.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, err := s.insights.Summary(ctx)
	if err != nil {
		return stats.Summary{}, gamification.Result{}, err
	}
	res, err := s.evaluator.Run(ctx, sum)
	res.Skipped = sum.Skipped
	return sum, res, err
}

// Evaluate recomputes unlocks from the full history and persists new ones.
func (s *RewardsService) Evaluate(ctx context.Context) (gamification.Result, error) {
	_, res, err := s.run(ctx)
	return res, err
}

// Unlocked evaluates and returns the unlocks of category, or all of them
// when category is empty.
func (s *RewardsService) Unlocked(ctx context.Context, category domain.Category) ([]domain.Unlock, error) {
	_, res, err := s.run(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Unlock, 0, len(res.Unlocked))
	for _, u := range res.Unlocked {
		if category == "" || u.Category == category {
			out = append(out, u)
		}
	}
	return out, nil
}

// Rank returns the grade and the XP earned so far.
func (s *RewardsService) Rank(ctx context.Context) (gamification.RankInfo, error) {
	sum, res, err := s.run(ctx)
	if err != nil {
		return gamification.RankInfo{}, err
	}
	info := gamification.Rank(sum, gamification.TotalXP(s.evaluator.Definitions(), res.Unlocked))
	info.Skipped = sum.Skipped
	return info, nil
}

// Progress reports progress on every definition of category, or on all of
// them when category is empty.
func (s *RewardsService) Progress(ctx context.Context, category domain.Category) ([]gamification.DefinitionProgress, error) {
	sum, res, err := s.run(ctx)
	if err != nil {
		return nil, err
	}
	defs := s.evaluator.Definitions()
	if category != "" {
		defs = gamification.ByCategory(defs, category)
	}
	return gamification.Progress(defs, sum, res.Unlocked), nil
}
