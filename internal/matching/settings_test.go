package matching

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"zero cooldown", func(s *Settings) { s.CooldownDays = 0 }},
		{"zero recency cap", func(s *Settings) { s.RecencyCapDays = 0 }},
		{"negative distance cap", func(s *Settings) { s.DistanceCapKm = -1 }},
		{"zero penalty distance", func(s *Settings) { s.PenaltyDistanceKm = 0 }},
		{"negative health cap", func(s *Settings) { s.HealthMax = -5 }},
		{"zero limit", func(s *Settings) { s.DefaultLimit = 0 }},
		{"negative weight", func(s *Settings) { s.Weights.Recency = -1 }},
		{"NaN weight", func(s *Settings) { s.Weights.Health = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
		})
	}
}

func TestWeights_Defaults(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 100.0, w.Sum())
	assert.Equal(t, Weights{BloodGroup: 40, Distance: 30, Recency: 20, Health: 10}, w)
}

func TestWeights_DoNotChangeScores(t *testing.T) {
	donor := newDonor(1, APositive, north(10), daysAgo(150))

	base := Score(donor, hospital, DefaultSettings(), testToday)

	s := DefaultSettings()
	s.Weights = Weights{BloodGroup: 0, Distance: 90, Recency: 5, Health: 5}
	reweighted := Score(donor, hospital, s, testToday)

	assert.Equal(t, base, reweighted)
}

func TestSettingsStore_RejectsInvalidUpdate(t *testing.T) {
	store, err := NewSettingsStore(DefaultSettings())
	require.NoError(t, err)

	bad := DefaultSettings()
	bad.CooldownDays = -1
	assert.ErrorIs(t, store.Update(bad), ErrInvalidSettings)
	assert.Equal(t, DefaultSettings(), store.Snapshot())

	negative := DefaultSettings()
	negative.Weights.Distance = -10
	swapped, err := store.CompareAndSwap(DefaultSettings(), negative)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.False(t, swapped)
	assert.Equal(t, DefaultSettings(), store.Snapshot())

	_, err = NewSettingsStore(bad)
	assert.Error(t, err)
}

func TestSettingsStore_CompareAndSwap(t *testing.T) {
	store, err := NewSettingsStore(DefaultSettings())
	require.NoError(t, err)

	base := store.Snapshot()
	first := base
	first.CooldownDays = 100
	second := base
	second.CooldownDays = 120

	swapped, err := store.CompareAndSwap(base, first)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = store.CompareAndSwap(base, second)
	require.NoError(t, err)
	assert.False(t, swapped, "stale base must not overwrite a newer snapshot")
	assert.Equal(t, first, store.Snapshot())
}

func TestWeights_ValidateNamesFirstBadWeightInOrder(t *testing.T) {
	w := Weights{BloodGroup: -1, Distance: math.NaN(), Recency: -3, Health: math.Inf(1)}
	for i := 0; i < 50; i++ {
		err := w.Validate()
		require.ErrorIs(t, err, ErrInvalidSettings)
		assert.Contains(t, err.Error(), "weight bloodGroup")
	}

	w.BloodGroup = 40
	assert.Contains(t, w.Validate().Error(), "weight distance")
	w.Distance = 30
	assert.Contains(t, w.Validate().Error(), "weight recency")
	w.Recency = 20
	assert.Contains(t, w.Validate().Error(), "weight health")
}

func TestSettingsStore_ReadersNeverSeeMixedSnapshots(t *testing.T) {
	store, err := NewSettingsStore(DefaultSettings())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				n := offset*1000 + i
				s := DefaultSettings()
				s.CooldownDays = n
				s.RecencyCapDays = 2 * n
				s.Weights.Distance = float64(n)
				assert.NoError(t, store.Update(s))
			}
		}(w)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s := store.Snapshot()
				if s.CooldownDays == 90 {
					continue
				}
				assert.Equal(t, 2*s.CooldownDays, s.RecencyCapDays)
				assert.Equal(t, float64(s.CooldownDays), s.Weights.Distance)
			}
		}()
	}
	wg.Wait()
}
