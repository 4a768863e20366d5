// internal/workers/matching/calculate-donor-score/models.go
package calculatedonorscore

import "lifelink-workers/internal/matching"

type Input struct {
	DonorID   int64          `json:"donorId"`
	RequestID int64          `json:"requestId,omitempty"`
	Request   *InlineRequest `json:"request,omitempty"`
}

type InlineRequest struct {
	RequesterID int64   `json:"requesterId,omitempty"`
	BloodGroup  string  `json:"bloodGroup"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Output explains one donor's standing against one request. Score is the
// raw total even when the donor is not eligible; Eligible says whether a
// ranking would include the donor at all.
type Output struct {
	DonorID    int64              `json:"donorId"`
	RequestID  int64              `json:"requestId,omitempty"`
	Score      float64            `json:"score"`
	Breakdown  matching.Breakdown `json:"breakdown"`
	DistanceKm float64            `json:"distanceKm"`
	Compatible bool               `json:"compatible"`
	Eligible   bool               `json:"eligible"`
	Blocked    bool               `json:"blocked"`
	Tier       string             `json:"tier"`
}
