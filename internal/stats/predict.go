package stats

import (
	"math"
	"time"

	"fightlog/internal/domain"
)

// PredictOptions tunes Predict. The zero value is completed by
// DefaultPredictOptions.
type PredictOptions struct {
	// Since restricts the fit to the active phase when set.
	Since time.Time
	// Window keeps only the last Window points when > 0.
	Window int
	// MaxPoints caps the fitted history.
	MaxPoints int
	// MinSigma is the floor of the residual standard error, so a perfect
	// fit on few points still yields a band.
	MinSigma float64
	// Z is the two-sided normal quantile of the band.
	Z float64
}

// DefaultPredictOptions returns a 95% band over at most a year of points.
func DefaultPredictOptions() PredictOptions {
	return PredictOptions{MaxPoints: DefaultMaxPoints, MinSigma: 0.1, Z: 1.96}
}

func (o PredictOptions) withDefaults() PredictOptions {
	def := DefaultPredictOptions()
	if o.MaxPoints <= 0 {
		o.MaxPoints = def.MaxPoints
	}
	if o.MinSigma <= 0 {
		o.MinSigma = def.MinSigma
	}
	if o.Z <= 0 {
		o.Z = def.Z
	}
	return o
}

// PhaseSince returns the start of the active cut or bulk phase, or the zero
// time when the whole history applies.
func PhaseSince(p *domain.Profile) time.Time {
	if p == nil || p.Goals.Phase == domain.PhaseNone || p.Goals.PhaseStart == nil {
		return time.Time{}
	}
	return *p.Goals.PhaseStart
}

// Predict projects metric to target with a least squares line over the
// selected window. It returns domain.ErrNotEnoughData when fewer than two
// distinct timestamps remain.
func Predict(ms []domain.Measurement, metric domain.Metric, target time.Time, opts PredictOptions) (domain.Prediction, error) {
	opts = opts.withDefaults()

	points, excluded := Series(ms, metric)
	if !opts.Since.IsZero() {
		kept := points[:0:0]
		for _, p := range points {
			if !p.Time.Before(opts.Since) {
				kept = append(kept, p)
			}
		}
		points = kept
	}
	points = tail(points, opts.Window)
	points = tail(points, opts.MaxPoints)

	f, ok := leastSquares(points)
	if !ok {
		return domain.Prediction{}, domain.ErrNotEnoughData
	}

	sigma := math.Max(f.sigma(), opts.MinSigma)
	x := daysBetween(f.origin, target)
	n := float64(f.n)
	half := opts.Z * sigma * math.Sqrt(1+1/n+(x-f.meanX)*(x-f.meanX)/f.sxx)
	value := f.at(x)

	pred := domain.Prediction{
		Metric:      metric,
		TargetDate:  target,
		Value:       value,
		Lower:       value - half,
		Upper:       value + half,
		SlopePerDay: f.slope,
		WeeklyRate:  f.slope * 7,
		R2:          f.r2(),
		Points:      f.n,
		Excluded:    excluded,
	}
	pred.Confidence = confidence(pred.Points, pred.R2)
	return pred, nil
}

func confidence(n int, r2 float64) domain.Confidence {
	switch {
	case n >= 14 && r2 >= 0.7:
		return domain.ConfidenceHigh
	case n >= 7 && r2 >= 0.4:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
