package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fightlog/internal/domain"
)

// Current payload versions per collection.
const (
	MeasurementVersion = 2
	SessionVersion     = 2
	ProfileVersion     = 2
	UnlockVersion      = 1
	DismissalVersion   = 1
)

const profileID = "profile"

// codec converts between records and entities of one collection. decode
// reports migrated=true when the record used an older shape and should be
// rewritten at the current version.
type codec[T any] struct {
	collection string
	version    int
	encode     func(T) (domain.Record, error)
	decode     func(rec domain.Record, loc *time.Location) (v T, migrated bool, err error)
}

func schemaErr(rec domain.Record, err error) error {
	return &domain.SchemaError{Collection: rec.Collection, ID: rec.ID, Version: rec.SchemaVersion, Err: err}
}

func marshalRecord(coll, id string, version int, ts time.Time, v any) (domain.Record, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode %s/%s: %w", coll, id, err)
	}
	return domain.Record{Collection: coll, ID: id, SchemaVersion: version, Timestamp: ts, Payload: payload}, nil
}

// parseLegacyDate accepts the date-only and datetime strings older clients wrote.
func parseLegacyDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// measurements

// legacyMeasurement is the v1 shape: snake_case keys, a date-only string
// and percentages named after the scale columns.
type legacyMeasurement struct {
	Weight        float64  `json:"weight"`
	FatPercent    *float64 `json:"fat_percent"`
	MusclePercent *float64 `json:"muscle_percent"`
	WaterPercent  *float64 `json:"water_percent"`
	VisceralFat   *float64 `json:"visceral_fat"`
	Date          string   `json:"date"`
}

var measurementCodec = codec[domain.Measurement]{
	collection: domain.CollectionMeasurements,
	version:    MeasurementVersion,
	encode: func(m domain.Measurement) (domain.Record, error) {
		return marshalRecord(domain.CollectionMeasurements, m.ID, MeasurementVersion, m.Timestamp, m)
	},
	decode: func(rec domain.Record, loc *time.Location) (domain.Measurement, bool, error) {
		var m domain.Measurement
		switch rec.SchemaVersion {
		case MeasurementVersion:
			if err := json.Unmarshal(rec.Payload, &m); err != nil {
				return m, false, schemaErr(rec, err)
			}
			m.ID = rec.ID
			return m, false, nil
		case 1:
			var old legacyMeasurement
			if err := json.Unmarshal(rec.Payload, &old); err != nil {
				return m, false, schemaErr(rec, err)
			}
			ts, err := parseLegacyDate(old.Date, loc)
			if err != nil {
				return m, false, schemaErr(rec, err)
			}
			m = domain.Measurement{
				ID:            rec.ID,
				Timestamp:     ts,
				Weight:        old.Weight,
				BodyFatPct:    old.FatPercent,
				MuscleMassPct: old.MusclePercent,
				WaterPct:      old.WaterPercent,
				VisceralFat:   old.VisceralFat,
				Revision:      1,
			}
			m.Derive()
			return m, true, nil
		default:
			return m, false, schemaErr(rec, nil)
		}
	},
}

// sessions

type legacySession struct {
	Sport           string `json:"sport"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes *int   `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

var sessionCodec = codec[domain.TrainingSession]{
	collection: domain.CollectionSessions,
	version:    SessionVersion,
	encode: func(s domain.TrainingSession) (domain.Record, error) {
		return marshalRecord(domain.CollectionSessions, s.ID, SessionVersion, s.Timestamp, s)
	},
	decode: func(rec domain.Record, loc *time.Location) (domain.TrainingSession, bool, error) {
		var s domain.TrainingSession
		switch rec.SchemaVersion {
		case SessionVersion:
			if err := json.Unmarshal(rec.Payload, &s); err != nil {
				return s, false, schemaErr(rec, err)
			}
			s.ID = rec.ID
			return s, false, nil
		case 1:
			var old legacySession
			if err := json.Unmarshal(rec.Payload, &old); err != nil {
				return s, false, schemaErr(rec, err)
			}
			date := old.Date
			if old.StartTime != "" && len(date) == len("2006-01-02") {
				date += " " + old.StartTime
				if len(old.StartTime) == len("15:04") {
					date += ":00"
				}
			}
			ts, err := parseLegacyDate(date, loc)
			if err != nil {
				return s, false, schemaErr(rec, err)
			}
			s = domain.TrainingSession{
				ID:              rec.ID,
				Timestamp:       ts,
				SportType:       old.Sport,
				DurationMinutes: old.DurationMinutes,
				Notes:           old.Notes,
			}
			return s, true, nil
		default:
			return s, false, schemaErr(rec, nil)
		}
	},
}

// profile

type legacyProfile struct {
	Name         string   `json:"name"`
	TargetWeight *float64 `json:"target_weight"`
	StartDate    string   `json:"start_date"`
	AvatarGender string   `json:"avatar_gender"`
	WeightGoal   string   `json:"weight_goal"`
	CreatedAt    string   `json:"created_at"`
}

var profileCodec = codec[domain.Profile]{
	collection: domain.CollectionProfile,
	version:    ProfileVersion,
	encode: func(p domain.Profile) (domain.Record, error) {
		return marshalRecord(domain.CollectionProfile, profileID, ProfileVersion, p.UpdatedAt, p)
	},
	decode: func(rec domain.Record, loc *time.Location) (domain.Profile, bool, error) {
		var p domain.Profile
		switch rec.SchemaVersion {
		case ProfileVersion:
			if err := json.Unmarshal(rec.Payload, &p); err != nil {
				return p, false, schemaErr(rec, err)
			}
			return p, false, nil
		case 1:
			var old legacyProfile
			if err := json.Unmarshal(rec.Payload, &old); err != nil {
				return p, false, schemaErr(rec, err)
			}
			p = domain.Profile{
				Username: old.Name,
				Gender:   old.AvatarGender,
				Unit:     domain.UnitKg,
				Goals:    domain.Goals{TargetWeight: old.TargetWeight},
			}
			switch old.WeightGoal {
			case "lose":
				p.Goals.Phase = domain.PhaseCut
			case "gain":
				p.Goals.Phase = domain.PhaseBulk
			}
			if old.StartDate != "" {
				if start, err := parseLegacyDate(old.StartDate, loc); err == nil {
					p.Goals.PhaseStart = &start
				}
			}
			if old.CreatedAt != "" {
				if created, err := parseLegacyDate(old.CreatedAt, loc); err == nil {
					p.CreatedAt = created
				}
			}
			p.UpdatedAt = rec.Timestamp
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = p.CreatedAt
			}
			return p, true, nil
		default:
			return p, false, schemaErr(rec, nil)
		}
	},
}

// unlocks

var unlockCodec = codec[domain.Unlock]{
	collection: domain.CollectionUnlocks,
	version:    UnlockVersion,
	encode: func(u domain.Unlock) (domain.Record, error) {
		return marshalRecord(domain.CollectionUnlocks, u.ID, UnlockVersion, u.UnlockedAt, u)
	},
	decode: func(rec domain.Record, _ *time.Location) (domain.Unlock, bool, error) {
		var u domain.Unlock
		if rec.SchemaVersion != UnlockVersion {
			return u, false, schemaErr(rec, nil)
		}
		if err := json.Unmarshal(rec.Payload, &u); err != nil {
			return u, false, schemaErr(rec, err)
		}
		u.ID = rec.ID
		return u, false, nil
	},
}

// plateau dismissals

// DismissalID is the deterministic record id of a dismissed window, so
// dismissing the same window twice overwrites instead of duplicating.
func DismissalID(w domain.PlateauWindow) string {
	return fmt.Sprintf("%s:%d:%d", w.Metric, w.Start.UnixNano(), w.End.UnixNano())
}

var dismissalCodec = codec[domain.PlateauDismissal]{
	collection: domain.CollectionPlateauDismissals,
	version:    DismissalVersion,
	encode: func(d domain.PlateauDismissal) (domain.Record, error) {
		return marshalRecord(domain.CollectionPlateauDismissals, DismissalID(d.Window), DismissalVersion, d.DismissedAt, d)
	},
	decode: func(rec domain.Record, _ *time.Location) (domain.PlateauDismissal, bool, error) {
		var d domain.PlateauDismissal
		if rec.SchemaVersion != DismissalVersion {
			return d, false, schemaErr(rec, nil)
		}
		if err := json.Unmarshal(rec.Payload, &d); err != nil {
			return d, false, schemaErr(rec, err)
		}
		return d, false, nil
	},
}
