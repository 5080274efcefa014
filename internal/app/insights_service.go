package app

import (
	"context"
	"errors"
	"time"

	"fightlog/internal/domain"
	"fightlog/internal/stats"

	"github.com/sirupsen/logrus"
)

// InsightsOptions tunes the statistics behind InsightsService.
type InsightsOptions struct {
	Predict stats.PredictOptions
	Plateau stats.PlateauOptions
}

// InsightsService derives streaks, predictions, plateau alerts and the
// summary statistics from stored history.
type InsightsService struct {
	measurements domain.MeasurementRepository
	sessions     domain.SessionRepository
	profiles     domain.ProfileRepository
	dismissals   domain.DismissalRepository
	cache        *Cache
	opts         InsightsOptions
	log          logrus.FieldLogger
	loc          *time.Location
	now          func() time.Time
}

// NewInsightsService wires an InsightsService. cache may be nil.
func NewInsightsService(
	mr domain.MeasurementRepository,
	sr domain.SessionRepository,
	pr domain.ProfileRepository,
	dr domain.DismissalRepository,
	cache *Cache,
	opts InsightsOptions,
	log logrus.FieldLogger,
	loc *time.Location,
) *InsightsService {
	if loc == nil {
		loc = time.UTC
	}
	return &InsightsService{
		measurements: mr,
		sessions:     sr,
		profiles:     pr,
		dismissals:   dr,
		cache:        cache,
		opts:         opts,
		log:          log,
		loc:          loc,
		now:          time.Now,
	}
}

// Completeness tells a caller whether a result was derived from the whole
// history. Skipped counts stored records that could not be read.
type Completeness struct {
	Skipped int  `json:"skipped"`
	Partial bool `json:"partial"`
}

func completeness(skipped int) Completeness {
	return Completeness{Skipped: skipped, Partial: skipped > 0}
}

// StreakResult is the training streak plus what was left out of it.
type StreakResult struct {
	domain.StreakState
	Completeness
}

// PredictionResult wraps a prediction. OK is false when there is not
// enough data to fit a trend.
type PredictionResult struct {
	Prediction domain.Prediction `json:"prediction"`
	OK         bool              `json:"ok"`
	Completeness
}

// PlateauResult holds the undismissed plateau alerts.
type PlateauResult struct {
	Alerts []domain.PlateauAlert `json:"alerts"`
	Completeness
}

func (s *InsightsService) today(now time.Time) string {
	return now.In(s.loc).Format("2006-01-02")
}

func (s *InsightsService) allMeasurements(ctx context.Context) ([]domain.Measurement, int, error) {
	ms, err := s.measurements.AllMeasurements(ctx, time.Time{})
	skipped, err := skipUnreadable(s.log, err)
	return ms, skipped, err
}

func (s *InsightsService) allSessions(ctx context.Context) ([]domain.TrainingSession, int, error) {
	sessions, err := s.sessions.AllSessions(ctx, time.Time{})
	skipped, err := skipUnreadable(s.log, err)
	return sessions, skipped, err
}

// Streak returns the training streak as of today.
func (s *InsightsService) Streak(ctx context.Context) (StreakResult, error) {
	sessions, skipped, err := s.allSessions(ctx)
	if err != nil {
		return StreakResult{}, err
	}
	now := s.now()
	st, err := getOrCompute(s.cache, "streak", func() (domain.StreakState, error) {
		return stats.Streak(sessions, now, s.loc), nil
	}, s.today(now), sessions)
	if err != nil {
		return StreakResult{}, err
	}
	return StreakResult{StreakState: st, Completeness: completeness(skipped)}, nil
}

// Prediction projects metric to target. During a cut or bulk only the
// active phase is fitted.
func (s *InsightsService) Prediction(ctx context.Context, metric domain.Metric, target time.Time) (PredictionResult, error) {
	if !metric.Valid() {
		return PredictionResult{}, domain.Invalid("unknown metric %q", metric)
	}
	if target.IsZero() {
		return PredictionResult{}, domain.Invalid("target date is required")
	}
	ms, skipped, err := s.allMeasurements(ctx)
	if err != nil {
		return PredictionResult{}, err
	}
	profile, err := s.profiles.Profile(ctx)
	if err != nil {
		return PredictionResult{}, err
	}

	opts := s.opts.Predict
	opts.Since = stats.PhaseSince(profile)
	res, err := getOrCompute(s.cache, "predict", func() (PredictionResult, error) {
		p, err := stats.Predict(ms, metric, target, opts)
		if errors.Is(err, domain.ErrNotEnoughData) {
			return PredictionResult{}, nil
		}
		if err != nil {
			return PredictionResult{}, err
		}
		return PredictionResult{Prediction: p, OK: true}, nil
	}, metric, target.UTC(), opts.Since.UTC(), ms)
	if err != nil {
		return PredictionResult{}, err
	}
	res.Completeness = completeness(skipped)
	res.Partial = res.Partial || res.Prediction.Partial()
	return res, nil
}

// PlateauAlerts returns the undismissed plateaus of every metric the user
// has a target rate for.
func (s *InsightsService) PlateauAlerts(ctx context.Context) (PlateauResult, error) {
	profile, err := s.profiles.Profile(ctx)
	if err != nil {
		return PlateauResult{}, err
	}
	if profile == nil {
		return PlateauResult{Alerts: []domain.PlateauAlert{}}, nil
	}
	ms, skipped, err := s.allMeasurements(ctx)
	if err != nil {
		return PlateauResult{}, err
	}
	dismissals, err := s.dismissals.Dismissals(ctx)
	if err = tolerate(s.log, err); err != nil {
		return PlateauResult{}, err
	}

	alerts, err := getOrCompute(s.cache, "plateau", func() ([]domain.PlateauAlert, error) {
		alerts := []domain.PlateauAlert{}
		for _, metric := range domain.Metrics {
			rate := profile.Goals.RateFor(metric)
			if rate == 0 {
				continue
			}
			alert, err := stats.DetectPlateau(ms, metric, rate, dismissals, s.opts.Plateau)
			if errors.Is(err, domain.ErrNotEnoughData) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if alert != nil {
				alerts = append(alerts, *alert)
			}
		}
		return alerts, nil
	}, profile.Goals, dismissals, ms)
	if err != nil {
		return PlateauResult{}, err
	}

	res := PlateauResult{Alerts: alerts, Completeness: completeness(skipped)}
	for _, a := range alerts {
		if a.Excluded > 0 {
			res.Partial = true
		}
	}
	return res, nil
}

// DismissPlateau hides the alert for exactly this window.
func (s *InsightsService) DismissPlateau(ctx context.Context, w domain.PlateauWindow) (domain.PlateauDismissal, error) {
	return s.dismissals.AddDismissal(ctx, domain.PlateauDismissal{Window: w, DismissedAt: s.now()})
}

// Summary derives the statistics the gamification rules read.
func (s *InsightsService) Summary(ctx context.Context) (stats.Summary, error) {
	ms, skippedMeasurements, err := s.allMeasurements(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	sessions, skippedSessions, err := s.allSessions(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	profile, err := s.profiles.Profile(ctx)
	if err != nil {
		return stats.Summary{}, err
	}

	now := s.now()
	sum, err := getOrCompute(s.cache, "summary", func() (stats.Summary, error) {
		return stats.Summarize(ms, sessions, profile, now, s.loc), nil
	}, s.today(now), profile, ms, sessions)
	if err != nil {
		return stats.Summary{}, err
	}
	sum.Now = now
	sum.Skipped = skippedMeasurements + skippedSessions
	return sum, nil
}
