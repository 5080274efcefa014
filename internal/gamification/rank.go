package gamification

import (
	"math"
	"time"

	"fightlog/internal/domain"
	"fightlog/internal/stats"
)

// Grade is a step of the rank ladder. A grade is reached with MinSessions
// sessions or MinWeightLost kg lost, whichever comes first. A RequiresGoal
// grade is reached only by hitting the goal weight.
type Grade struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	MinSessions   int     `json:"minSessions"`
	MinWeightLost float64 `json:"minWeightLost"`
	RequiresGoal  bool    `json:"requiresGoal,omitempty"`
}

// Grades is the rank ladder, lowest first.
var Grades = []Grade{
	{ID: "ashigaru", Name: "Foot Soldier"},
	{ID: "bushi", Name: "Athlete", MinSessions: 10, MinWeightLost: 2},
	{ID: "samurai", Name: "Elite", MinSessions: 30, MinWeightLost: 5},
	{ID: "ronin", Name: "Master", MinSessions: 60, MinWeightLost: 10},
	{ID: "shogun", Name: "Shogun", RequiresGoal: true},
}

// RankInfo is the user's current grade and the way to the next one.
type RankInfo struct {
	Grade Grade  `json:"grade"`
	Next  *Grade `json:"next,omitempty"`
	// ProgressToNext is a percentage in [0, 100].
	ProgressToNext float64 `json:"progressToNext"`
	XP             int     `json:"xp"`
	// Skipped counts unreadable history records left out of the grade.
	Skipped int `json:"skipped"`
}

// Rank places s on the grade ladder. xp is reported as is.
func Rank(s stats.Summary, xp int) RankInfo {
	idx := 0
	if s.GoalReached {
		idx = len(Grades) - 1
	} else {
		for i, g := range Grades {
			if g.RequiresGoal {
				break
			}
			if s.TotalSessions >= g.MinSessions || s.WeightLost >= g.MinWeightLost {
				idx = i
			}
		}
	}

	info := RankInfo{Grade: Grades[idx], ProgressToNext: 100, XP: xp}
	if idx == len(Grades)-1 {
		return info
	}
	next := Grades[idx+1]
	info.Next = &next

	if next.RequiresGoal {
		info.ProgressToNext = 0
		return info
	}
	cur := Grades[idx]
	sessions := ratio(float64(s.TotalSessions-cur.MinSessions), float64(next.MinSessions-cur.MinSessions))
	weight := ratio(s.WeightLost-cur.MinWeightLost, next.MinWeightLost-cur.MinWeightLost)
	info.ProgressToNext = domain.RoundTo(math.Max(sessions, weight)*100, 1)
	return info
}

func ratio(done, need float64) float64 {
	if need <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, done/need))
}

// TotalXP sums the XP of every unlocked definition.
func TotalXP(defs []Definition, unlocked []domain.Unlock) int {
	byID := make(map[string]int, len(defs))
	for _, d := range defs {
		byID[d.ID] = d.XP
	}
	xp := 0
	for _, u := range unlocked {
		xp += byID[u.ID]
	}
	return xp
}

// DefinitionProgress is how far a definition is from being unlocked.
type DefinitionProgress struct {
	Definition
	Current    float64    `json:"current"`
	Percent    float64    `json:"percent"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// Progress reports every definition's progress against s.
func Progress(defs []Definition, s stats.Summary, unlocked []domain.Unlock) []DefinitionProgress {
	at := make(map[string]time.Time, len(unlocked))
	for _, u := range unlocked {
		at[u.ID] = u.UnlockedAt
	}

	out := make([]DefinitionProgress, 0, len(defs))
	for _, d := range defs {
		p := DefinitionProgress{Definition: d, Current: Value(s, d.Stat)}
		if t, ok := at[d.ID]; ok {
			p.Unlocked = true
			p.UnlockedAt = &t
			p.Percent = 100
		} else if d.Threshold <= 0 {
			p.Percent = 100
		} else {
			p.Percent = domain.RoundTo(math.Min(100, p.Current/d.Threshold*100), 1)
		}
		out = append(out, p)
	}
	return out
}
