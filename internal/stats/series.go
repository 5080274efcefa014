// Package stats derives streaks, predictions, plateau alerts and summary
// statistics from raw history. Every function is pure: inputs are slices
// of entities, nothing touches storage.
package stats

import (
	"math"
	"sort"
	"time"

	"fightlog/internal/domain"
)

// DefaultMaxPoints caps the history a single derivation looks at.
const DefaultMaxPoints = 365

// Point is one observation of a metric.
type Point struct {
	Time  time.Time
	Value float64
}

// Series extracts metric from ms, oldest first. Measurements that do not
// carry the metric, carry a non-finite value, or have a non-positive weight
// are left out and counted in excluded.
func Series(ms []domain.Measurement, metric domain.Metric) (points []Point, excluded int) {
	points = make([]Point, 0, len(ms))
	for _, m := range ms {
		v, ok := m.Value(metric)
		if !ok || m.Timestamp.IsZero() || (metric == domain.MetricWeight && v <= 0) {
			excluded++
			continue
		}
		points = append(points, Point{Time: m.Timestamp, Value: v})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points, excluded
}

// tail keeps the last n points when n > 0.
func tail(points []Point, n int) []Point {
	if n > 0 && len(points) > n {
		return points[len(points)-n:]
	}
	return points
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// fit is an ordinary least squares line over points with x in days since
// the first point.
type fit struct {
	n         int
	origin    time.Time
	slope     float64
	intercept float64
	meanX     float64
	sxx       float64
	sse       float64
	sst       float64
}

func leastSquares(points []Point) (fit, bool) {
	f := fit{n: len(points)}
	if f.n < 2 {
		return f, false
	}
	f.origin = points[0].Time

	var sumX, sumY float64
	for _, p := range points {
		sumX += daysBetween(f.origin, p.Time)
		sumY += p.Value
	}
	n := float64(f.n)
	f.meanX = sumX / n
	meanY := sumY / n

	var sxy float64
	for _, p := range points {
		dx := daysBetween(f.origin, p.Time) - f.meanX
		dy := p.Value - meanY
		f.sxx += dx * dx
		sxy += dx * dy
		f.sst += dy * dy
	}
	if f.sxx == 0 {
		return f, false
	}
	f.slope = sxy / f.sxx
	f.intercept = meanY - f.slope*f.meanX

	for _, p := range points {
		r := p.Value - f.at(daysBetween(f.origin, p.Time))
		f.sse += r * r
	}
	return f, true
}

func (f fit) at(x float64) float64 {
	return f.intercept + f.slope*x
}

// sigma is the residual standard error.
func (f fit) sigma() float64 {
	if f.n <= 2 {
		return 0
	}
	return math.Sqrt(f.sse / float64(f.n-2))
}

func (f fit) r2() float64 {
	if f.sst == 0 {
		if f.sse == 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, 1-f.sse/f.sst)
}
