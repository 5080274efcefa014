package app

import (
	"context"
	"time"

	"fightlog/internal/domain"

	"github.com/sirupsen/logrus"
)

// MeasurementInput is a measurement as entered by the user. Weight is in Unit.
type MeasurementInput struct {
	Timestamp     time.Time
	Weight        float64
	Unit          string
	BodyFatPct    *float64
	MuscleMassPct *float64
	WaterPct      *float64
	VisceralFat   *float64
}

func (in MeasurementInput) toDomain(now time.Time) (domain.Measurement, error) {
	if in.Unit == "" {
		in.Unit = domain.UnitKg
	}
	if !domain.ValidUnit(in.Unit) {
		return domain.Measurement{}, domain.Invalid("unit must be \"kg\" or \"lb\"")
	}
	if in.Weight <= 0 {
		return domain.Measurement{}, domain.Invalid("weight must be > 0")
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return domain.Measurement{
		Timestamp:     ts,
		Weight:        domain.RoundTo(domain.ConvertWeight(in.Weight, in.Unit, domain.UnitKg), 2),
		BodyFatPct:    in.BodyFatPct,
		MuscleMassPct: in.MuscleMassPct,
		WaterPct:      in.WaterPct,
		VisceralFat:   in.VisceralFat,
	}, nil
}

// MeasurementService encapsulates body measurement use cases.
type MeasurementService struct {
	repo domain.MeasurementRepository
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewMeasurementService creates a MeasurementService backed by the given repository.
func NewMeasurementService(repo domain.MeasurementRepository, log logrus.FieldLogger) *MeasurementService {
	return &MeasurementService{repo: repo, log: log, now: time.Now}
}

// Record converts and stores a new measurement.
func (s *MeasurementService) Record(ctx context.Context, in MeasurementInput) (domain.Measurement, error) {
	m, err := in.toDomain(s.now())
	if err != nil {
		return domain.Measurement{}, err
	}
	return s.repo.AddMeasurement(ctx, m)
}

// Edit replaces the measurement with the given id. The timestamp is required.
func (s *MeasurementService) Edit(ctx context.Context, id string, in MeasurementInput) (domain.Measurement, error) {
	if in.Timestamp.IsZero() {
		return domain.Measurement{}, domain.Invalid("timestamp is required")
	}
	m, err := in.toDomain(s.now())
	if err != nil {
		return domain.Measurement{}, err
	}
	m.ID = id
	return s.repo.EditMeasurement(ctx, m)
}

// All returns every readable measurement, oldest first.
func (s *MeasurementService) All(ctx context.Context) ([]domain.Measurement, error) {
	ms, err := s.repo.AllMeasurements(ctx, time.Time{})
	return ms, tolerate(s.log, err)
}

// ListRecent returns the most recent measurements up to limit, newest first.
func (s *MeasurementService) ListRecent(ctx context.Context, limit int) ([]domain.Measurement, error) {
	ms, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(ms, limit), nil
}

// UndoLast deletes the most recent measurement and returns the new latest one.
// The delete stands even when the new latest one cannot be read.
func (s *MeasurementService) UndoLast(ctx context.Context) (bool, *domain.Measurement, error) {
	last, err := s.repo.LatestMeasurement(ctx)
	if err != nil {
		return false, nil, err
	}
	if last == nil {
		return false, nil, nil
	}
	if err := s.repo.DeleteMeasurement(ctx, last.ID); err != nil {
		return false, nil, err
	}
	latest, err := s.repo.LatestMeasurement(ctx)
	if err != nil {
		s.log.WithError(err).WithField("deleted", last.ID).Warn("reading latest measurement after undo")
		return true, nil, nil
	}
	return true, latest, nil
}

func newestFirst[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}
