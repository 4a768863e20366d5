// internal/workers/matching/update-matching-settings/models.go
package updatesettings

import (
	"time"

	"lifelink-workers/internal/matching"
)

// Input carries only the fields to change.
type Input struct {
	DonationGapDays   *int              `json:"donationGapDays,omitempty"`
	EmergencyRadiusKm *float64          `json:"emergencyRadiusKm,omitempty"`
	Weights           *matching.Weights `json:"weights,omitempty"`
	UpdatedBy         string            `json:"updatedBy,omitempty"`
}

type Output struct {
	CooldownDays      int              `json:"cooldownDays"`
	EmergencyRadiusKm float64          `json:"emergencyRadiusKm"`
	Weights           matching.Weights `json:"weights"`
	WeightsTotal      float64          `json:"weightsTotal"`
	UpdatedBy         string           `json:"updatedBy,omitempty"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func (in *Input) apply(s matching.Settings) matching.Settings {
	if in.DonationGapDays != nil {
		s.CooldownDays = *in.DonationGapDays
	}
	if in.EmergencyRadiusKm != nil {
		s.EmergencyRadiusKm = *in.EmergencyRadiusKm
	}
	if in.Weights != nil {
		s.Weights = *in.Weights
	}
	return s
}
