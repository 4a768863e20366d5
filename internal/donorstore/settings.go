// internal/donorstore/settings.go
package donorstore

import (
	"context"
	"database/sql"
	"fmt"

	"lifelink-workers/internal/matching"
)

// PersistedSettings is the operator-editable subset of matching.Settings
// kept in system_settings and ai_config.
type PersistedSettings struct {
	DonationGapDays   int              `json:"donationGapDays"`
	EmergencyRadiusKm float64          `json:"emergencyRadiusKm"`
	Weights           matching.Weights `json:"weights"`
	HasSystem         bool             `json:"hasSystem"`
	HasWeights        bool             `json:"hasWeights"`
}

// Overlay applies the persisted values that exist onto base.
func (p PersistedSettings) Overlay(base matching.Settings) matching.Settings {
	if p.HasSystem {
		base.CooldownDays = p.DonationGapDays
		base.EmergencyRadiusKm = p.EmergencyRadiusKm
	}
	if p.HasWeights {
		base.Weights = p.Weights
	}
	return base
}

// LoadSettings returns base with the stored overrides applied. Missing
// rows leave the corresponding fields of base untouched.
func (s *Store) LoadSettings(ctx context.Context, base matching.Settings) (matching.Settings, error) {
	var p PersistedSettings
	if s.cacheGet(ctx, "settings", settingsKey, &p) {
		return p.Overlay(base), nil
	}

	p, err := s.readSettings(ctx)
	if err != nil {
		return base, err
	}

	s.cacheSet(ctx, settingsKey, p, s.opts.SettingsTTL)
	return p.Overlay(base), nil
}

func (s *Store) readSettings(ctx context.Context) (PersistedSettings, error) {
	var p PersistedSettings

	err := s.db.QueryRowContext(ctx, `
		SELECT donation_gap_days, emergency_radius_km
		FROM system_settings ORDER BY id LIMIT 1`).
		Scan(&p.DonationGapDays, &p.EmergencyRadiusKm)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return p, fmt.Errorf("query system_settings: %w", err)
	default:
		p.HasSystem = true
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT weight_blood_group, weight_distance, weight_recency, weight_health
		FROM ai_config ORDER BY id LIMIT 1`).
		Scan(&p.Weights.BloodGroup, &p.Weights.Distance, &p.Weights.Recency, &p.Weights.Health)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return p, fmt.Errorf("query ai_config: %w", err)
	default:
		p.HasWeights = true
	}

	return p, nil
}

// SaveSettings writes the persisted subset of next in one transaction and
// drops the cached copy.
func (s *Store) SaveSettings(ctx context.Context, next matching.Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE system_settings SET donation_gap_days = $1, emergency_radius_km = $2`,
		next.CooldownDays, next.EmergencyRadiusKm)
	if err != nil {
		return fmt.Errorf("update system_settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO system_settings (donation_gap_days, emergency_radius_km) VALUES ($1, $2)`,
			next.CooldownDays, next.EmergencyRadiusKm); err != nil {
			return fmt.Errorf("insert system_settings: %w", err)
		}
	}

	w := next.Weights
	res, err = tx.ExecContext(ctx, `
		UPDATE ai_config SET weight_blood_group = $1, weight_distance = $2, weight_recency = $3, weight_health = $4`,
		w.BloodGroup, w.Distance, w.Recency, w.Health)
	if err != nil {
		return fmt.Errorf("update ai_config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ai_config (weight_blood_group, weight_distance, weight_recency, weight_health) VALUES ($1, $2, $3, $4)`,
			w.BloodGroup, w.Distance, w.Recency, w.Health); err != nil {
			return fmt.Errorf("insert ai_config: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings update: %w", err)
	}

	s.cacheDel(ctx, settingsKey)
	return nil
}
