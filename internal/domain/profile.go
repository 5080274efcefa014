package domain

import (
	"context"
	"time"
)

// Phase is the body recomposition phase the user is in.
type Phase string

const (
	PhaseNone Phase = ""
	PhaseCut  Phase = "cut"
	PhaseBulk Phase = "bulk"
)

// Goals holds the user's targets. WeeklyRate is the absolute weight change
// per week the user aims for, in kg.
type Goals struct {
	TargetWeight *float64           `json:"targetWeight,omitempty"`
	WeeklyRate   float64            `json:"weeklyRate"`
	Phase        Phase              `json:"phase,omitempty"`
	PhaseStart   *time.Time         `json:"phaseStart,omitempty"`
	Rates        map[Metric]float64 `json:"rates,omitempty"`
}

// RateFor returns the weekly target rate for metric, falling back to
// WeeklyRate for weight.
func (g Goals) RateFor(metric Metric) float64 {
	if r, ok := g.Rates[metric]; ok {
		return r
	}
	if metric == MetricWeight {
		return g.WeeklyRate
	}
	return 0
}

// Profile is the singleton user profile.
type Profile struct {
	Username  string    `json:"username"`
	Gender    string    `json:"gender"`
	Goals     Goals     `json:"goals"`
	Unit      string    `json:"unit"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfilePatch carries the fields an update changes. Nil fields are kept.
type ProfilePatch struct {
	Username     *string
	Gender       *string
	Unit         *string
	TargetWeight *float64
	WeeklyRate   *float64
	Phase        *Phase
	PhaseStart   *time.Time
	Rates        map[Metric]float64
}

// Apply merges the patch into p.
func (pp ProfilePatch) Apply(p *Profile) {
	if pp.Username != nil {
		p.Username = *pp.Username
	}
	if pp.Gender != nil {
		p.Gender = *pp.Gender
	}
	if pp.Unit != nil {
		p.Unit = *pp.Unit
	}
	if pp.TargetWeight != nil {
		tw := *pp.TargetWeight
		p.Goals.TargetWeight = &tw
	}
	if pp.WeeklyRate != nil {
		p.Goals.WeeklyRate = *pp.WeeklyRate
	}
	if pp.Phase != nil {
		p.Goals.Phase = *pp.Phase
	}
	if pp.PhaseStart != nil {
		ps := *pp.PhaseStart
		p.Goals.PhaseStart = &ps
	}
	if len(pp.Rates) > 0 {
		if p.Goals.Rates == nil {
			p.Goals.Rates = make(map[Metric]float64, len(pp.Rates))
		}
		for k, v := range pp.Rates {
			p.Goals.Rates[k] = v
		}
	}
}

// ProfileRepository is the port for the profile singleton.
type ProfileRepository interface {
	Profile(ctx context.Context) (*Profile, error)
	UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error)
}
