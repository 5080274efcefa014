package stats

import (
	"sort"
	"time"

	"fightlog/internal/domain"
)

const dayLayout = "2006-01-02"

// dayNumber maps t to the index of its calendar day in loc. Consecutive
// calendar days have consecutive numbers regardless of DST changes.
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func dayString(n int64) string {
	return time.Unix(n*86400, 0).UTC().Format(dayLayout)
}

// activeDays returns the distinct calendar days of times in loc, ascending.
func activeDays(times []time.Time, loc *time.Location) []int64 {
	seen := make(map[int64]struct{}, len(times))
	days := make([]int64, 0, len(times))
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		n := dayNumber(t, loc)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		days = append(days, n)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// Streak computes the training streak over sessions as of now. Days are
// calendar days in loc. The current streak is the run of consecutive active
// days ending today or yesterday; any older last activity means 0.
func Streak(sessions []domain.TrainingSession, now time.Time, loc *time.Location) domain.StreakState {
	if loc == nil {
		loc = time.UTC
	}
	times := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		times = append(times, s.Timestamp)
	}
	return streakOf(activeDays(times, loc), dayNumber(now, loc))
}

func streakOf(days []int64, today int64) domain.StreakState {
	st := domain.StreakState{DistinctDays: len(days)}
	if len(days) == 0 {
		return st
	}

	run := 0
	for i, d := range days {
		if i > 0 && d == days[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > st.Longest {
			st.Longest = run
		}
		// Days after today (clock skew) never count toward the current streak.
		if d <= today {
			st.LastActiveDay = dayString(d)
			if d >= today-1 {
				st.Current = run
				st.ActiveToday = d == today
			} else {
				st.Current = 0
				st.ActiveToday = false
			}
		}
	}
	return st
}
