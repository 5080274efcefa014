package stats

import (
	"math"
	"time"

	"fightlog/internal/domain"
)

// PlateauOptions tunes DetectPlateau.
type PlateauOptions struct {
	// WindowPoints is the minimum number of points in the trailing window.
	WindowPoints int
	// MinSpan is the minimum time the trailing window covers.
	MinSpan time.Duration
	// Threshold flags a plateau when |weekly slope| < Threshold * |target rate|.
	Threshold float64
	MaxPoints int
}

// DefaultPlateauOptions returns four points over at least two weeks and a
// quarter of the target rate.
func DefaultPlateauOptions() PlateauOptions {
	return PlateauOptions{
		WindowPoints: 4,
		MinSpan:      14 * 24 * time.Hour,
		Threshold:    0.25,
		MaxPoints:    DefaultMaxPoints,
	}
}

func (o PlateauOptions) withDefaults() PlateauOptions {
	def := DefaultPlateauOptions()
	if o.WindowPoints < 2 {
		o.WindowPoints = def.WindowPoints
	}
	if o.MinSpan <= 0 {
		o.MinSpan = def.MinSpan
	}
	if o.Threshold <= 0 {
		o.Threshold = def.Threshold
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = def.MaxPoints
	}
	return o
}

// TrailingWindow returns the shortest suffix of points holding at least
// WindowPoints points and spanning at least MinSpan.
func TrailingWindow(points []Point, opts PlateauOptions) ([]Point, bool) {
	opts = opts.withDefaults()
	if len(points) < opts.WindowPoints {
		return nil, false
	}
	last := points[len(points)-1].Time
	for k := len(points) - opts.WindowPoints; k >= 0; k-- {
		if last.Sub(points[k].Time) >= opts.MinSpan {
			return points[k:], true
		}
	}
	return nil, false
}

// DetectPlateau flags a stalled metric. targetRate is the weekly change
// the user aims for; 0 means no goal and never flags. The alert is
// suppressed only by a dismissal of exactly the same window, so a new
// measurement moves the window and can raise the alert again.
func DetectPlateau(ms []domain.Measurement, metric domain.Metric, targetRate float64, dismissals []domain.PlateauDismissal, opts PlateauOptions) (*domain.PlateauAlert, error) {
	opts = opts.withDefaults()

	points, excluded := Series(ms, metric)
	points = tail(points, opts.MaxPoints)
	window, ok := TrailingWindow(points, opts)
	if !ok {
		return nil, domain.ErrNotEnoughData
	}
	if targetRate == 0 || math.IsNaN(targetRate) {
		return nil, nil
	}

	f, ok := leastSquares(window)
	if !ok {
		return nil, domain.ErrNotEnoughData
	}
	weekly := f.slope * 7
	if math.Abs(weekly) >= opts.Threshold*math.Abs(targetRate) {
		return nil, nil
	}

	w := domain.PlateauWindow{Metric: metric, Start: window[0].Time, End: window[len(window)-1].Time}
	for _, d := range dismissals {
		if d.Window.Equal(w) {
			return nil, nil
		}
	}

	var sum float64
	for _, p := range window {
		sum += p.Value
	}
	return &domain.PlateauAlert{
		Window:       w,
		WeeklySlope:  weekly,
		TargetRate:   targetRate,
		AverageValue: sum / float64(len(window)),
		Points:       len(window),
		DurationDays: int(math.Round(daysBetween(w.Start, w.End))),
		Excluded:     excluded,
	}, nil
}
