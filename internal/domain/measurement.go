package domain

import (
	"context"
	"math"
	"time"
)

// Metric names a tracked measurement series.
type Metric string

const (
	MetricWeight      Metric = "weight"
	MetricBodyFat     Metric = "bodyFat"
	MetricMuscleMass  Metric = "muscleMass"
	MetricWater       Metric = "water"
	MetricVisceralFat Metric = "visceralFat"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{MetricWeight, MetricBodyFat, MetricMuscleMass, MetricWater, MetricVisceralFat}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

// Measurement is a single body measurement. Weight is always stored in kg.
type Measurement struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Weight        float64         `json:"weight"`
	BodyFatPct    *float64        `json:"bodyFatPct,omitempty"`
	MuscleMassPct *float64        `json:"muscleMassPct,omitempty"`
	WaterPct      *float64        `json:"waterPct,omitempty"`
	VisceralFat   *float64        `json:"visceralFat,omitempty"`
	Derived       *DerivedMetrics `json:"derivedMetrics,omitempty"`
	// Revision starts at 1 and is bumped by every explicit edit.
	Revision int `json:"revision"`
}

// DerivedMetrics are masses computed from weight and composition percentages.
type DerivedMetrics struct {
	FatMassKg  *float64 `json:"fatMassKg,omitempty"`
	LeanMassKg *float64 `json:"leanMassKg,omitempty"`
	WaterKg    *float64 `json:"waterKg,omitempty"`
}

// Value returns the value of metric m, or false when the measurement does
// not carry it or carries a non-finite value.
func (m Measurement) Value(metric Metric) (float64, bool) {
	var v *float64
	switch metric {
	case MetricWeight:
		w := m.Weight
		v = &w
	case MetricBodyFat:
		v = m.BodyFatPct
	case MetricMuscleMass:
		v = m.MuscleMassPct
	case MetricWater:
		v = m.WaterPct
	case MetricVisceralFat:
		v = m.VisceralFat
	}
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// Derive fills Derived from the weight and composition percentages.
func (m *Measurement) Derive() {
	if m.Weight <= 0 || (m.BodyFatPct == nil && m.WaterPct == nil) {
		m.Derived = nil
		return
	}
	d := &DerivedMetrics{}
	if m.BodyFatPct != nil {
		fat := round2(m.Weight * *m.BodyFatPct / 100)
		lean := round2(m.Weight - fat)
		d.FatMassKg, d.LeanMassKg = &fat, &lean
	}
	if m.WaterPct != nil {
		water := round2(m.Weight * *m.WaterPct / 100)
		d.WaterKg = &water
	}
	m.Derived = d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MeasurementRepository is the port for measurement persistence.
type MeasurementRepository interface {
	AddMeasurement(ctx context.Context, m Measurement) (Measurement, error)
	EditMeasurement(ctx context.Context, m Measurement) (Measurement, error)
	DeleteMeasurement(ctx context.Context, id string) error
	LatestMeasurement(ctx context.Context) (*Measurement, error)
	AllMeasurements(ctx context.Context, since time.Time) ([]Measurement, error)
}
