package gamification

import (
	"fightlog/internal/domain"
	"fightlog/internal/stats"
)

// Stat names the summary value a definition is measured against.
type Stat string

const (
	StatLongestStreak        Stat = "longestStreak"
	StatTotalSessions        Stat = "totalSessions"
	StatWeightLost           Stat = "weightLost"
	StatGoalReached          Stat = "goalReached"
	StatHasProfile           Stat = "hasProfile"
	StatEarlyWeighIns        Stat = "earlyWeighIns"
	StatLateSessions         Stat = "lateSessions"
	StatTotalMeasurements    Stat = "totalMeasurements"
	StatCompleteMeasurements Stat = "completeMeasurements"
	StatMaxSessionsPerDay    Stat = "maxSessionsPerDay"
	StatMaxSessionsPerWeek   Stat = "maxSessionsPerWeek"
	StatMaxSessionsPerMonth  Stat = "maxSessionsPerMonth"
	StatMaxWeighInsPerDay    Stat = "maxWeighInsPerDay"
	StatWeekendsTrained      Stat = "weekendsTrained"
	StatSportVariety         Stat = "sportVariety"
	StatDaysSinceFirstEntry  Stat = "daysSinceFirstEntry"
	StatBestLoss4Weeks       Stat = "bestLoss4w"
	StatBestLoss8Weeks       Stat = "bestLoss8w"
	StatBestLoss12Weeks      Stat = "bestLoss12w"
	StatBestGain4Weeks       Stat = "bestGain4w"
	StatBestGain8Weeks       Stat = "bestGain8w"
	StatBestGain12Weeks      Stat = "bestGain12w"
)

// Value reads stat from s. Unknown stats read as 0.
func Value(s stats.Summary, stat Stat) float64 {
	switch stat {
	case StatLongestStreak:
		return float64(s.Streak.Longest)
	case StatTotalSessions:
		return float64(s.TotalSessions)
	case StatWeightLost:
		return s.WeightLost
	case StatGoalReached:
		return boolValue(s.GoalReached)
	case StatHasProfile:
		return boolValue(s.HasProfile)
	case StatEarlyWeighIns:
		return float64(s.EarlyWeighIns)
	case StatLateSessions:
		return float64(s.LateSessions)
	case StatTotalMeasurements:
		return float64(s.TotalMeasurements)
	case StatCompleteMeasurements:
		return float64(s.CompleteMeasurements)
	case StatMaxSessionsPerDay:
		return float64(s.MaxSessionsPerDay)
	case StatMaxSessionsPerWeek:
		return float64(s.MaxSessionsPerWeek)
	case StatMaxSessionsPerMonth:
		return float64(s.MaxSessionsPerMonth)
	case StatMaxWeighInsPerDay:
		return float64(s.MaxWeighInsPerDay)
	case StatWeekendsTrained:
		return float64(s.WeekendsTrained)
	case StatSportVariety:
		return float64(s.SportVariety)
	case StatDaysSinceFirstEntry:
		return float64(s.DaysSinceFirstEntry)
	case StatBestLoss4Weeks:
		return s.BestLoss[4]
	case StatBestLoss8Weeks:
		return s.BestLoss[8]
	case StatBestLoss12Weeks:
		return s.BestLoss[12]
	case StatBestGain4Weeks:
		return s.BestGain[4]
	case StatBestGain8Weeks:
		return s.BestGain[8]
	case StatBestGain12Weeks:
		return s.BestGain[12]
	}
	return 0
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Definition is a badge, quest or challenge. It is unlocked once the value
// of Stat reaches Threshold.
type Definition struct {
	ID        string
	Category  domain.Category
	Group     string
	Stat      Stat
	Threshold float64
	XP        int
}

// Badge groups.
const (
	GroupStreak   = "streak"
	GroupWeight   = "weight"
	GroupTraining = "training"
	GroupSpecial  = "special"
	GroupTime     = "time"
	GroupDaily    = "daily"
	GroupWeekly   = "weekly"
	GroupMonthly  = "monthly"
	GroupLoss     = "loss"
	GroupGain     = "gain"
)

func badge(id, group string, stat Stat, threshold float64, xp int) Definition {
	return Definition{ID: id, Category: domain.CategoryBadge, Group: group, Stat: stat, Threshold: threshold, XP: xp}
}

func quest(id, group string, stat Stat, threshold float64, xp int) Definition {
	return Definition{ID: id, Category: domain.CategoryQuest, Group: group, Stat: stat, Threshold: threshold, XP: xp}
}

func challenge(id, group string, stat Stat, threshold float64, xp int) Definition {
	return Definition{ID: id, Category: domain.CategoryChallenge, Group: group, Stat: stat, Threshold: threshold, XP: xp}
}

// Catalog returns every definition the engine evaluates.
func Catalog() []Definition {
	return []Definition{
		badge("first_flame", GroupStreak, StatLongestStreak, 7, 50),
		badge("fortnight_warrior", GroupStreak, StatLongestStreak, 14, 100),
		badge("on_fire", GroupStreak, StatLongestStreak, 30, 150),
		badge("fifty_days", GroupStreak, StatLongestStreak, 50, 250),
		badge("inferno", GroupStreak, StatLongestStreak, 100, 500),
		badge("centurion", GroupStreak, StatLongestStreak, 150, 750),
		badge("double_century", GroupStreak, StatLongestStreak, 200, 1000),
		badge("legendary_streak", GroupStreak, StatLongestStreak, 365, 2000),

		badge("first_step", GroupWeight, StatWeightLost, 1, 25),
		badge("first_three", GroupWeight, StatWeightLost, 3, 75),
		badge("launched", GroupWeight, StatWeightLost, 5, 100),
		badge("determined", GroupWeight, StatWeightLost, 10, 250),
		badge("halfway_hero", GroupWeight, StatWeightLost, 15, 400),
		badge("transformed", GroupWeight, StatWeightLost, 20, 500),
		badge("super_transformed", GroupWeight, StatWeightLost, 25, 750),
		badge("ultimate_warrior", GroupWeight, StatWeightLost, 30, 1000),
		badge("goal_reached", GroupWeight, StatGoalReached, 1, 1000),

		badge("first_training", GroupTraining, StatTotalSessions, 5, 25),
		badge("beginner", GroupTraining, StatTotalSessions, 10, 50),
		badge("committed", GroupTraining, StatTotalSessions, 25, 100),
		badge("regular", GroupTraining, StatTotalSessions, 50, 200),
		badge("warrior", GroupTraining, StatTotalSessions, 100, 500),
		badge("veteran", GroupTraining, StatTotalSessions, 200, 800),
		badge("elite", GroupTraining, StatTotalSessions, 300, 1200),
		badge("champion", GroupTraining, StatTotalSessions, 400, 1500),
		badge("master", GroupTraining, StatTotalSessions, 500, 2000),
		badge("unstoppable", GroupTraining, StatTotalSessions, 750, 3000),
		badge("legend", GroupTraining, StatTotalSessions, 1000, 5000),

		badge("team_member", GroupSpecial, StatHasProfile, 1, 100),
		badge("early_bird", GroupSpecial, StatEarlyWeighIns, 10, 100),
		badge("night_owl", GroupSpecial, StatLateSessions, 10, 100),
		badge("analyst", GroupSpecial, StatTotalMeasurements, 50, 150),
		badge("complete", GroupSpecial, StatCompleteMeasurements, 30, 300),
		badge("double_session", GroupSpecial, StatMaxSessionsPerDay, 2, 150),
		badge("triple_session", GroupSpecial, StatMaxSessionsPerDay, 3, 300),
		badge("weekend_warrior", GroupSpecial, StatWeekendsTrained, 1, 100),
		badge("seven_days_straight", GroupSpecial, StatLongestStreak, 7, 200),
		badge("perfect_month", GroupSpecial, StatLongestStreak, 30, 500),
		badge("explorer", GroupSpecial, StatSportVariety, 3, 150),

		badge("one_month", GroupTime, StatDaysSinceFirstEntry, 30, 100),
		badge("six_months", GroupTime, StatDaysSinceFirstEntry, 180, 300),
		badge("one_year", GroupTime, StatDaysSinceFirstEntry, 365, 1000),

		quest("daily_training", GroupDaily, StatMaxSessionsPerDay, 1, 25),
		quest("daily_weigh", GroupDaily, StatMaxWeighInsPerDay, 1, 10),
		quest("weekly_5_trainings", GroupWeekly, StatMaxSessionsPerWeek, 5, 150),
		quest("weekly_streak_7", GroupWeekly, StatLongestStreak, 7, 100),
		quest("monthly_20_trainings", GroupMonthly, StatMaxSessionsPerMonth, 20, 500),
		quest("monthly_weight_goal", GroupMonthly, StatGoalReached, 1, 300),
		quest("monthly_streak_30", GroupMonthly, StatLongestStreak, 30, 500),

		challenge("lose_2kg_4w", GroupLoss, StatBestLoss4Weeks, 2, 200),
		challenge("lose_4kg_8w", GroupLoss, StatBestLoss8Weeks, 4, 400),
		challenge("lose_6kg_12w", GroupLoss, StatBestLoss12Weeks, 6, 600),
		challenge("gain_1kg_4w", GroupGain, StatBestGain4Weeks, 1, 150),
		challenge("gain_2kg_8w", GroupGain, StatBestGain8Weeks, 2, 300),
		challenge("gain_3kg_12w", GroupGain, StatBestGain12Weeks, 3, 450),
	}
}

// ByCategory filters defs to one category.
func ByCategory(defs []Definition, c domain.Category) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if d.Category == c {
			out = append(out, d)
		}
	}
	return out
}
