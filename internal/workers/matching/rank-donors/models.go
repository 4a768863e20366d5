// internal/workers/matching/rank-donors/models.go
package rankdonors

import (
	"time"

	"lifelink-workers/internal/matching"
)

type Input struct {
	RequestID int64          `json:"requestId,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Source    string         `json:"source,omitempty"`
	Request   *InlineRequest `json:"request,omitempty"`
}

// InlineRequest ranks for a request that has not been stored yet.
type InlineRequest struct {
	RequesterID int64   `json:"requesterId,omitempty"`
	BloodGroup  string  `json:"bloodGroup"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Urgency     string  `json:"urgency,omitempty"`
}

type RankedDonor struct {
	DonorID    int64              `json:"donorId"`
	FullName   string             `json:"fullName"`
	BloodGroup string             `json:"bloodGroup"`
	Score      float64            `json:"score"`
	DistanceKm float64            `json:"distanceKm"`
	Tier       string             `json:"tier"`
	Breakdown  matching.Breakdown `json:"breakdown"`
}

type Output struct {
	RequestID      int64            `json:"requestId,omitempty"`
	BloodGroup     string           `json:"bloodGroup"`
	Urgency        string           `json:"urgency"`
	RankedDonors   []RankedDonor    `json:"rankedDonors"`
	CandidateCount int              `json:"candidateCount"`
	EligibleCount  int              `json:"eligibleCount"`
	StrongCount    int              `json:"strongCount"`
	Weights        matching.Weights `json:"weights"`
	Source         string           `json:"source"`
	RankedAt       time.Time        `json:"rankedAt"`
}
