package updatesettings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink-workers/internal/common/camunda/camundatest"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/donorstore"
	"lifelink-workers/internal/matching"
)

type fixture struct {
	handler  *Handler
	mock     sqlmock.Sqlmock
	redis    *miniredis.Miniredis
	settings *matching.SettingsStore
}

func setup(t *testing.T) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	settings, err := matching.NewSettingsStore(matching.DefaultSettings())
	require.NoError(t, err)

	store := donorstore.New(db, rdb, logger.NewNoOpLogger(), donorstore.Options{})
	clock := matching.FixedClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	return &fixture{
		handler:  NewHandler(DefaultConfig(), store, settings, clock, nil, logger.NewTestLogger(t)),
		mock:     mock,
		redis:    mr,
		settings: settings,
	}
}

func intPtr(v int) *int { return &v }

// racingStore records every save and lets a test move the live snapshot
// while a save is in flight.
type racingStore struct {
	saved  []matching.Settings
	during func(attempt int)
}

func (r *racingStore) SaveSettings(_ context.Context, next matching.Settings) error {
	r.saved = append(r.saved, next)
	if r.during != nil {
		r.during(len(r.saved))
	}
	return nil
}

func newRacingHandler(t *testing.T, store *racingStore, settings *matching.SettingsStore) *Handler {
	return NewHandler(DefaultConfig(), store, settings, matching.FixedClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)), nil, logger.NewTestLogger(t))
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_PersistsThenPublishes(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.redis.Set("matching:settings", `{"donationGapDays":90}`))

	weights := matching.Weights{BloodGroup: 50, Distance: 25, Recency: 15, Health: 10}
	f.mock.ExpectBegin()
	f.mock.ExpectExec(`UPDATE system_settings`).WithArgs(120, 50.0).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE ai_config`).WithArgs(50.0, 25.0, 15.0, 10.0).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	out, err := f.handler.Execute(context.Background(), &Input{
		DonationGapDays: intPtr(120),
		Weights:         &weights,
		UpdatedBy:       "admin@lifelink",
	})
	require.NoError(t, err)

	assert.Equal(t, 120, out.CooldownDays)
	assert.Equal(t, 100.0, out.WeightsTotal)
	assert.Equal(t, 120, f.settings.Snapshot().CooldownDays)
	assert.Equal(t, weights, f.settings.Snapshot().Weights)
	assert.False(t, f.redis.Exists("matching:settings"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandler_Execute_DatabaseFailureKeepsSnapshot(t *testing.T) {
	f := setup(t)

	f.mock.ExpectBegin()
	f.mock.ExpectExec(`UPDATE system_settings`).WillReturnError(errors.New("read-only transaction"))
	f.mock.ExpectRollback()

	_, err := f.handler.Execute(context.Background(), &Input{DonationGapDays: intPtr(60)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_UPDATE_FAILED")
	assert.Equal(t, 90, f.settings.Snapshot().CooldownDays)
}

func TestHandler_Execute_RejectsInvalidSettings(t *testing.T) {
	f := setup(t)
	radius := -5.0

	_, err := f.handler.Execute(context.Background(), &Input{EmergencyRadiusKm: &radius})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_SETTINGS")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHandler_Execute_PublishesExactlyWhatWasSaved(t *testing.T) {
	settings, err := matching.NewSettingsStore(matching.DefaultSettings())
	require.NoError(t, err)

	store := &racingStore{}
	store.during = func(attempt int) {
		if attempt == 1 {
			concurrent := settings.Snapshot()
			concurrent.EmergencyRadiusKm = 75
			require.NoError(t, settings.Update(concurrent))
		}
	}

	out, err := newRacingHandler(t, store, settings).Execute(context.Background(), &Input{DonationGapDays: intPtr(120)})
	require.NoError(t, err)

	require.Len(t, store.saved, 2)
	assert.Equal(t, 50.0, store.saved[0].EmergencyRadiusKm)
	assert.Equal(t, store.saved[1], settings.Snapshot())
	assert.Equal(t, 120, settings.Snapshot().CooldownDays)
	assert.Equal(t, 75.0, settings.Snapshot().EmergencyRadiusKm)
	assert.Equal(t, 75.0, out.EmergencyRadiusKm)
}

func TestHandler_Execute_GivesUpWhenSnapshotKeepsMoving(t *testing.T) {
	settings, err := matching.NewSettingsStore(matching.DefaultSettings())
	require.NoError(t, err)

	store := &racingStore{}
	store.during = func(attempt int) {
		concurrent := settings.Snapshot()
		concurrent.EmergencyRadiusKm = float64(60 + attempt)
		require.NoError(t, settings.Update(concurrent))
	}

	_, err = newRacingHandler(t, store, settings).Execute(context.Background(), &Input{DonationGapDays: intPtr(120)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_UPDATE_FAILED")
	assert.Len(t, store.saved, publishAttempts)
	assert.Equal(t, 90, settings.Snapshot().CooldownDays)
}

// ==========================
// Handle
// ==========================

func TestHandler_Handle_SchemaRejectsNegativeWeight(t *testing.T) {
	f := setup(t)
	client := camundatest.NewJobClient()

	f.handler.Handle(client, camundatest.NewJob(20, TaskType, map[string]interface{}{
		"weights": map[string]interface{}{"bloodGroup": 40, "distance": -1, "recency": 20, "health": 10},
	}))

	thrown := client.Thrown()
	require.Len(t, thrown, 1)
	assert.Equal(t, "INPUT_VALIDATION_FAILED", thrown[0].ErrorCode)
	assert.Equal(t, matching.DefaultWeights(), f.settings.Snapshot().Weights)
}

func TestHandler_Handle_Completes(t *testing.T) {
	f := setup(t)
	f.mock.ExpectBegin()
	f.mock.ExpectExec(`UPDATE system_settings`).WithArgs(90, 30.0).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE ai_config`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	client := camundatest.NewJobClient()
	f.handler.Handle(client, camundatest.NewJob(21, TaskType, map[string]interface{}{"emergencyRadiusKm": 30}))

	var out Output
	require.NoError(t, client.DecodeCompletion(&out))
	assert.Equal(t, 30.0, out.EmergencyRadiusKm)
	assert.Equal(t, 30.0, f.settings.Snapshot().EmergencyRadiusKm)
}
