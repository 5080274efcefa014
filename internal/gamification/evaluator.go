// Package gamification turns summary statistics into badge, quest and
// challenge unlocks. Unlocks are recomputed from the full history on every
// evaluation and never revoked.
package gamification

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fightlog/internal/domain"
	"fightlog/internal/repository"
	"fightlog/internal/stats"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of one evaluation.
type Result struct {
	// Unlocked is every unlock, prior and new, oldest first.
	Unlocked []domain.Unlock
	// Newly holds the unlocks this evaluation added. They share one UnlockedAt.
	Newly []domain.Unlock
	// Skipped counts unreadable history records left out of the evaluation.
	Skipped int
}

// Evaluate returns prior plus every definition whose stat reached its
// threshold. Prior unlocks are kept even when their definition no longer
// qualifies or is no longer in defs. Evaluating the same inputs again
// yields no new unlocks.
func Evaluate(defs []Definition, s stats.Summary, prior []domain.Unlock, now time.Time) Result {
	have := make(map[string]bool, len(prior))
	res := Result{Unlocked: make([]domain.Unlock, 0, len(prior)+len(defs))}
	for _, u := range prior {
		if have[u.ID] {
			continue
		}
		have[u.ID] = true
		res.Unlocked = append(res.Unlocked, u)
	}

	for _, d := range defs {
		if have[d.ID] || Value(s, d.Stat) < d.Threshold {
			continue
		}
		have[d.ID] = true
		u := domain.Unlock{ID: d.ID, Category: d.Category, UnlockedAt: now}
		res.Newly = append(res.Newly, u)
		res.Unlocked = append(res.Unlocked, u)
	}

	sort.SliceStable(res.Unlocked, func(i, j int) bool {
		a, b := res.Unlocked[i], res.Unlocked[j]
		if !a.UnlockedAt.Equal(b.UnlockedAt) {
			return a.UnlockedAt.Before(b.UnlockedAt)
		}
		return a.ID < b.ID
	})
	return res
}

// Observer is told about each persisted unlock.
type Observer interface {
	ObserveUnlock(category string)
}

// Evaluator evaluates a summary against stored unlocks and persists what is new.
type Evaluator struct {
	repo domain.UnlockRepository
	defs []Definition
	log  logrus.FieldLogger
	obs  Observer
	now  func() time.Time
}

// NewEvaluator creates an Evaluator over defs. obs may be nil.
func NewEvaluator(repo domain.UnlockRepository, defs []Definition, log logrus.FieldLogger, obs Observer) *Evaluator {
	return &Evaluator{repo: repo, defs: defs, log: log, obs: obs, now: time.Now}
}

// Definitions returns the evaluated catalog.
func (e *Evaluator) Definitions() []Definition {
	return e.defs
}

// Run evaluates s and writes the new unlocks in a single batch. When the
// batch fails nothing is reported as newly unlocked.
func (e *Evaluator) Run(ctx context.Context, s stats.Summary) (Result, error) {
	prior, err := e.repo.Unlocks(ctx)
	if err != nil && !repository.IsSchemaOnly(err) {
		return Result{}, fmt.Errorf("load unlocks: %w", err)
	}

	now := s.Now
	if now.IsZero() {
		now = e.now()
	}
	res := Evaluate(e.defs, s, prior, now)
	if len(res.Newly) == 0 {
		return res, nil
	}

	if err := e.repo.RecordUnlocks(ctx, res.Newly); err != nil {
		return Result{}, fmt.Errorf("record unlocks: %w", err)
	}
	for _, u := range res.Newly {
		if e.obs != nil {
			e.obs.ObserveUnlock(string(u.Category))
		}
		e.log.WithFields(logrus.Fields{"id": u.ID, "category": u.Category}).Info("unlocked")
	}
	return res, nil
}
