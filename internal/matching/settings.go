package matching

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

var (
	ErrInvalidSettings = errors.New("invalid matching settings")
	ErrSettingsChanged = errors.New("matching settings changed concurrently")
)

// Weights is the operator-tunable split between blood group, distance,
// recency and health. It is persisted and reported but the scoring formula
// uses the fixed LocationMax/RecencyMax/HealthMax caps instead.
type Weights struct {
	BloodGroup float64 `json:"bloodGroup" mapstructure:"blood_group"`
	Distance   float64 `json:"distance" mapstructure:"distance"`
	Recency    float64 `json:"recency" mapstructure:"recency"`
	Health     float64 `json:"health" mapstructure:"health"`
}

func DefaultWeights() Weights {
	return Weights{BloodGroup: 40, Distance: 30, Recency: 20, Health: 10}
}

// Validate reports the first bad weight in bloodGroup, distance, recency,
// health order.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"bloodGroup", w.BloodGroup},
		{"distance", w.Distance},
		{"recency", w.Recency},
		{"health", w.Health},
	} {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: weight %s must be a non-negative number, got %v", ErrInvalidSettings, f.name, f.value)
		}
	}
	return nil
}

func (w Weights) Sum() float64 {
	return w.BloodGroup + w.Distance + w.Recency + w.Health
}

// Settings is an immutable snapshot of everything a ranking call reads.
// EmergencyRadiusKm is persisted and reported with the snapshot; neither
// candidate selection nor scoring reads it.
type Settings struct {
	CooldownDays       int     `json:"cooldownDays"`
	RecencyCapDays     int     `json:"recencyCapDays"`
	MissingHistoryDays int     `json:"missingHistoryDays"`
	DistanceCapKm      float64 `json:"distanceCapKm"`
	PenaltyDistanceKm  float64 `json:"penaltyDistanceKm"`
	LocationMax        float64 `json:"locationMax"`
	RecencyMax         float64 `json:"recencyMax"`
	HealthMax          float64 `json:"healthMax"`
	HabitPenalty       float64 `json:"habitPenalty"`
	DefaultLimit       int     `json:"defaultLimit"`
	StrongThreshold    float64 `json:"strongThreshold"`
	EmergencyRadiusKm  float64 `json:"emergencyRadiusKm"`
	Weights            Weights `json:"weights"`
}

func DefaultSettings() Settings {
	return Settings{
		CooldownDays:       90,
		RecencyCapDays:     180,
		MissingHistoryDays: 365,
		DistanceCapKm:      50,
		PenaltyDistanceKm:  1000,
		LocationMax:        40,
		RecencyMax:         30,
		HealthMax:          30,
		HabitPenalty:       10,
		DefaultLimit:       5,
		StrongThreshold:    80,
		EmergencyRadiusKm:  50,
		Weights:            DefaultWeights(),
	}
}

func (s Settings) Validate() error {
	switch {
	case s.CooldownDays <= 0:
		return fmt.Errorf("%w: cooldownDays must be positive", ErrInvalidSettings)
	case s.RecencyCapDays <= 0:
		return fmt.Errorf("%w: recencyCapDays must be positive", ErrInvalidSettings)
	case s.MissingHistoryDays < 0:
		return fmt.Errorf("%w: missingHistoryDays must not be negative", ErrInvalidSettings)
	case s.DistanceCapKm <= 0:
		return fmt.Errorf("%w: distanceCapKm must be positive", ErrInvalidSettings)
	case s.PenaltyDistanceKm <= 0:
		return fmt.Errorf("%w: penaltyDistanceKm must be positive", ErrInvalidSettings)
	case s.LocationMax < 0 || s.RecencyMax < 0 || s.HealthMax < 0 || s.HabitPenalty < 0:
		return fmt.Errorf("%w: score caps and habit penalty must not be negative", ErrInvalidSettings)
	case s.DefaultLimit <= 0:
		return fmt.Errorf("%w: defaultLimit must be positive", ErrInvalidSettings)
	case s.EmergencyRadiusKm < 0:
		return fmt.Errorf("%w: emergencyRadiusKm must not be negative", ErrInvalidSettings)
	}
	return s.Weights.Validate()
}

// SettingsProvider hands out the snapshot a ranking call works against.
type SettingsProvider interface {
	Snapshot() Settings
}

// SettingsStore publishes settings snapshots to concurrent rankers.
// Update replaces the whole snapshot, so readers see either the old or the
// new value and never a mixture.
type SettingsStore struct {
	current atomic.Pointer[Settings]
}

func NewSettingsStore(initial Settings) (*SettingsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	st := &SettingsStore{}
	st.current.Store(&initial)
	return st, nil
}

func (st *SettingsStore) Snapshot() Settings {
	return *st.current.Load()
}

func (st *SettingsStore) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	st.current.Store(&next)
	return nil
}

// CompareAndSwap publishes next only if the current snapshot still equals
// base. It reports false when another writer got there first.
func (st *SettingsStore) CompareAndSwap(base, next Settings) (bool, error) {
	if err := next.Validate(); err != nil {
		return false, err
	}
	old := st.current.Load()
	if *old != base {
		return false, nil
	}
	return st.current.CompareAndSwap(old, &next), nil
}

// FixedSettings serves one snapshot, pinning a multi-step operation to it.
type FixedSettings Settings

func (f FixedSettings) Snapshot() Settings { return Settings(f) }
