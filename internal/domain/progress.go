package domain

import (
	"context"
	"time"
)

// StreakState is the derived training streak.
type StreakState struct {
	Current       int    `json:"current"`
	Longest       int    `json:"longest"`
	LastActiveDay string `json:"lastActiveDay,omitempty"`
	ActiveToday   bool   `json:"activeToday"`
	DistinctDays  int    `json:"distinctDays"`
}

// Confidence grades how much a prediction can be trusted.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Prediction is a projected metric value with a confidence band. It is never
// persisted.
type Prediction struct {
	Metric      Metric     `json:"metric"`
	TargetDate  time.Time  `json:"targetDate"`
	Value       float64    `json:"value"`
	Lower       float64    `json:"lower"`
	Upper       float64    `json:"upper"`
	SlopePerDay float64    `json:"slopePerDay"`
	WeeklyRate  float64    `json:"weeklyRate"`
	R2          float64    `json:"r2"`
	Points      int        `json:"points"`
	Excluded    int        `json:"excluded"`
	Confidence  Confidence `json:"confidence"`
}

// Partial reports whether malformed points were left out of the fit.
func (p Prediction) Partial() bool {
	return p.Excluded > 0
}

// PlateauWindow identifies the trailing window a plateau was detected on.
type PlateauWindow struct {
	Metric Metric    `json:"metric"`
	Start  time.Time `json:"windowStart"`
	End    time.Time `json:"windowEnd"`
}

// Equal reports exact window identity. Times compare by instant.
func (w PlateauWindow) Equal(o PlateauWindow) bool {
	return w.Metric == o.Metric && w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// PlateauDismissal records that the user dismissed the alert for a window.
type PlateauDismissal struct {
	Window      PlateauWindow `json:"window"`
	DismissedAt time.Time     `json:"dismissedAt"`
}

// PlateauAlert is an active plateau the user has not dismissed.
type PlateauAlert struct {
	Window       PlateauWindow `json:"window"`
	WeeklySlope  float64       `json:"weeklySlope"`
	TargetRate   float64       `json:"targetRate"`
	AverageValue float64       `json:"averageValue"`
	Points       int           `json:"points"`
	DurationDays int           `json:"durationDays"`
	// Excluded counts measurements without a usable value for Metric.
	Excluded int `json:"excluded"`
}

// DismissalRepository is the port for plateau dismissals.
type DismissalRepository interface {
	AddDismissal(ctx context.Context, d PlateauDismissal) (PlateauDismissal, error)
	Dismissals(ctx context.Context) ([]PlateauDismissal, error)
}

// Category groups gamification entities.
type Category string

const (
	CategoryBadge     Category = "badge"
	CategoryQuest     Category = "quest"
	CategoryChallenge Category = "challenge"
)

// Unlock is the persisted Unlocked state of a badge, quest or challenge.
// Once written it is never cleared.
type Unlock struct {
	ID         string    `json:"id"`
	Category   Category  `json:"category"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// UnlockRepository is the port for unlock state.
type UnlockRepository interface {
	Unlocks(ctx context.Context) ([]Unlock, error)
	// RecordUnlocks persists every unlock or none of them.
	RecordUnlocks(ctx context.Context, unlocks []Unlock) error
}
