package app

import (
	"context"
	"time"

	"fightlog/internal/domain"

	"github.com/sirupsen/logrus"
)

const maxChartDays = 366

// ChartsService encapsulates chart data retrieval use cases.
type ChartsService struct {
	measurements domain.MeasurementRepository
	sessions     domain.SessionRepository
	log          logrus.FieldLogger
	loc          *time.Location
	now          func() time.Time
}

// NewChartsService creates a ChartsService backed by the given repositories.
// Days are cut in loc.
func NewChartsService(mr domain.MeasurementRepository, sr domain.SessionRepository, log logrus.FieldLogger, loc *time.Location) *ChartsService {
	if loc == nil {
		loc = time.UTC
	}
	return &ChartsService{measurements: mr, sessions: sr, log: log, loc: loc, now: time.Now}
}

// DayPoint is a single data point returned by GetDaily.
type DayPoint struct {
	Day             string       `json:"day"`
	Sessions        int          `json:"sessions"`
	TrainingMinutes int          `json:"trainingMinutes"`
	Weight          *WeightPoint `json:"weight"`
}

// WeightPoint is the optional weight value within a DayPoint.
type WeightPoint struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// GetDaily returns per-day chart data for the last days days, oldest first,
// with the day's latest weight converted to unit.
func (s *ChartsService) GetDaily(ctx context.Context, days int, unit string) ([]DayPoint, error) {
	if !domain.ValidUnit(unit) {
		return nil, domain.Invalid("unit must be \"kg\" or \"lb\"")
	}
	if days <= 0 {
		return []DayPoint{}, nil
	}
	if days > maxChartDays {
		days = maxChartDays
	}

	today := s.now().In(s.loc)
	first := time.Date(today.Year(), today.Month(), today.Day()-(days-1), 0, 0, 0, 0, s.loc)

	ms, err := s.measurements.AllMeasurements(ctx, first)
	if err = tolerate(s.log, err); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.AllSessions(ctx, first)
	if err = tolerate(s.log, err); err != nil {
		return nil, err
	}

	points := make([]DayPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		day := first.AddDate(0, 0, i).Format("2006-01-02")
		points[i].Day = day
		index[day] = i
	}

	for _, sess := range sessions {
		i, ok := index[sess.Timestamp.In(s.loc).Format("2006-01-02")]
		if !ok {
			continue
		}
		points[i].Sessions++
		if sess.DurationMinutes != nil {
			points[i].TrainingMinutes += *sess.DurationMinutes
		}
	}
	// measurements are oldest first, so the last one of a day wins
	for _, m := range ms {
		i, ok := index[m.Timestamp.In(s.loc).Format("2006-01-02")]
		if !ok {
			continue
		}
		val := domain.RoundTo(domain.ConvertWeight(m.Weight, domain.UnitKg, unit), 2)
		points[i].Weight = &WeightPoint{Value: val, Unit: unit}
	}
	return points, nil
}
