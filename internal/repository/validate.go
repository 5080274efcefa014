package repository

import (
	"math"

	"fightlog/internal/domain"
)

const (
	maxWeightKg    = 500
	maxVisceralFat = 60
)

func validateMeasurement(m domain.Measurement) error {
	if m.Timestamp.IsZero() {
		return domain.Invalid("timestamp is required")
	}
	if !finite(m.Weight) || m.Weight <= 0 {
		return domain.Invalid("weight must be > 0")
	}
	if m.Weight >= maxWeightKg {
		return domain.Invalid("weight must be < %d kg", maxWeightKg)
	}
	for name, v := range map[string]*float64{
		"body fat":    m.BodyFatPct,
		"muscle mass": m.MuscleMassPct,
		"water":       m.WaterPct,
	} {
		if v != nil && (!finite(*v) || *v < 0 || *v > 100) {
			return domain.Invalid("%s must be within [0, 100]", name)
		}
	}
	if m.VisceralFat != nil && (!finite(*m.VisceralFat) || *m.VisceralFat < 0 || *m.VisceralFat > maxVisceralFat) {
		return domain.Invalid("visceral fat must be within [0, %d]", maxVisceralFat)
	}
	return nil
}

func validateSession(s domain.TrainingSession) error {
	if s.Timestamp.IsZero() {
		return domain.Invalid("timestamp is required")
	}
	if s.SportType == "" {
		return domain.Invalid("sport type is required")
	}
	if s.DurationMinutes != nil && *s.DurationMinutes < 0 {
		return domain.Invalid("duration must be >= 0")
	}
	return nil
}

func validateProfile(p domain.Profile) error {
	if p.Unit != "" && !domain.ValidUnit(p.Unit) {
		return domain.Invalid("unit must be %q or %q", domain.UnitKg, domain.UnitLb)
	}
	if tw := p.Goals.TargetWeight; tw != nil && (!finite(*tw) || *tw <= 0 || *tw >= maxWeightKg) {
		return domain.Invalid("target weight must be within (0, %d)", maxWeightKg)
	}
	if !finite(p.Goals.WeeklyRate) {
		return domain.Invalid("weekly rate must be finite")
	}
	switch p.Goals.Phase {
	case domain.PhaseNone, domain.PhaseCut, domain.PhaseBulk:
	default:
		return domain.Invalid("unknown phase %q", p.Goals.Phase)
	}
	for metric, rate := range p.Goals.Rates {
		if !metric.Valid() {
			return domain.Invalid("unknown metric %q", metric)
		}
		if !finite(rate) {
			return domain.Invalid("rate for %s must be finite", metric)
		}
	}
	return nil
}

func validateWindow(w domain.PlateauWindow) error {
	if !w.Metric.Valid() {
		return domain.Invalid("unknown metric %q", w.Metric)
	}
	if w.Start.IsZero() || w.End.IsZero() || w.End.Before(w.Start) {
		return domain.Invalid("window must have start <= end")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
