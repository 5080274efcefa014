package stats

import (
	"math"
	"time"

	"fightlog/internal/domain"
)

// ChallengeWeeks are the windows best loss and gain are tracked over.
var ChallengeWeeks = []int{4, 8, 12}

// Summary is the derived history the gamification evaluator reads. Every
// field only grows as history is appended, which keeps unlocks monotone.
type Summary struct {
	Now time.Time

	TotalSessions        int
	TotalTrainingMinutes int
	Streak               domain.StreakState
	MaxSessionsPerDay    int
	MaxSessionsPerWeek   int
	MaxSessionsPerMonth  int
	// WeekendsTrained counts ISO weeks with sessions on both Saturday and Sunday.
	WeekendsTrained int
	SportVariety    int
	LateSessions    int

	TotalMeasurements    int
	CompleteMeasurements int
	EarlyWeighIns        int
	MaxWeighInsPerDay    int

	// WeightLost is the largest drop from any measurement to a later one.
	WeightLost   float64
	WeightGained float64
	// BestLoss and BestGain are keyed by ChallengeWeeks.
	BestLoss    map[int]float64
	BestGain    map[int]float64
	GoalReached bool

	HasProfile          bool
	DaysSinceFirstEntry int

	// Skipped counts stored records that could not be read and were left out.
	Skipped int
}

// Partial reports whether the summary was derived without some records.
func (s Summary) Partial() bool {
	return s.Skipped > 0
}

const (
	earlyHour = 7
	lateHour  = 21
)

// Summarize derives a Summary from raw history as of now, with calendar
// boundaries in loc.
func Summarize(ms []domain.Measurement, sessions []domain.TrainingSession, profile *domain.Profile, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	s := Summary{
		Now:        now,
		Streak:     Streak(sessions, now, loc),
		HasProfile: profile != nil,
		BestLoss:   make(map[int]float64, len(ChallengeWeeks)),
		BestGain:   make(map[int]float64, len(ChallengeWeeks)),
	}

	var first time.Time
	observe := func(t time.Time) {
		if !t.IsZero() && (first.IsZero() || t.Before(first)) {
			first = t
		}
	}

	perDay := map[int64]int{}
	perWeek := map[int]int{}
	perMonth := map[int]int{}
	weekendDays := map[int]map[time.Weekday]bool{}
	sports := map[string]struct{}{}
	for _, sess := range sessions {
		if sess.Timestamp.IsZero() {
			continue
		}
		observe(sess.Timestamp)
		s.TotalSessions++
		if sess.DurationMinutes != nil && *sess.DurationMinutes > 0 {
			s.TotalTrainingMinutes += *sess.DurationMinutes
		}
		local := sess.Timestamp.In(loc)
		if local.Hour() >= lateHour {
			s.LateSessions++
		}
		sports[sess.SportType] = struct{}{}

		perDay[dayNumber(local, loc)]++
		y, w := local.ISOWeek()
		week := y*100 + w
		perWeek[week]++
		perMonth[local.Year()*100+int(local.Month())]++
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			if weekendDays[week] == nil {
				weekendDays[week] = map[time.Weekday]bool{}
			}
			weekendDays[week][wd] = true
		}
	}
	s.MaxSessionsPerDay = maxCount(perDay)
	s.MaxSessionsPerWeek = maxCount(perWeek)
	s.MaxSessionsPerMonth = maxCount(perMonth)
	s.SportVariety = len(sports)
	for _, days := range weekendDays {
		if days[time.Saturday] && days[time.Sunday] {
			s.WeekendsTrained++
		}
	}

	weighInsPerDay := map[int64]int{}
	for _, m := range ms {
		if m.Timestamp.IsZero() {
			continue
		}
		observe(m.Timestamp)
		s.TotalMeasurements++
		if m.BodyFatPct != nil && m.MuscleMassPct != nil && m.WaterPct != nil && m.VisceralFat != nil {
			s.CompleteMeasurements++
		}
		local := m.Timestamp.In(loc)
		if local.Hour() < earlyHour {
			s.EarlyWeighIns++
		}
		weighInsPerDay[dayNumber(local, loc)]++
	}
	s.MaxWeighInsPerDay = maxCount(weighInsPerDay)

	weights, _ := Series(ms, domain.MetricWeight)
	s.WeightLost = bestChange(weights, 0, true)
	s.WeightGained = bestChange(weights, 0, false)
	for _, w := range ChallengeWeeks {
		span := time.Duration(w) * 7 * 24 * time.Hour
		s.BestLoss[w] = bestChange(weights, span, true)
		s.BestGain[w] = bestChange(weights, span, false)
	}
	s.GoalReached = goalReached(weights, profile)

	if !first.IsZero() && now.After(first) {
		s.DaysSinceFirstEntry = int(dayNumber(now, loc) - dayNumber(first, loc))
	}
	return s
}

func maxCount[K comparable](counts map[K]int) int {
	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	return best
}

// bestChange returns the largest drop (loss) or rise between a point and a
// later point at most span apart, or any later point when span is 0. It
// runs a monotonic deque over the time-sorted points.
func bestChange(points []Point, span time.Duration, loss bool) float64 {
	better := func(a, b float64) bool {
		if loss {
			return a >= b
		}
		return a <= b
	}
	var (
		best  float64
		deque []int
	)
	for j, p := range points {
		for span > 0 && len(deque) > 0 && p.Time.Sub(points[deque[0]].Time) > span {
			deque = deque[1:]
		}
		if len(deque) > 0 {
			d := points[deque[0]].Value - p.Value
			if !loss {
				d = -d
			}
			best = math.Max(best, d)
		}
		for len(deque) > 0 && better(p.Value, points[deque[len(deque)-1]].Value) {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, j)
	}
	return domain.RoundTo(best, 2)
}

// goalReached reports whether any weight ever reached the target: at or
// above it during a bulk, at or below it otherwise.
func goalReached(weights []Point, p *domain.Profile) bool {
	if p == nil || p.Goals.TargetWeight == nil {
		return false
	}
	target := *p.Goals.TargetWeight
	for _, w := range weights {
		if p.Goals.Phase == domain.PhaseBulk && w.Value >= target {
			return true
		}
		if p.Goals.Phase != domain.PhaseBulk && w.Value <= target {
			return true
		}
	}
	return false
}
