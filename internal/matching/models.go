package matching

import (
	"fmt"
	"strings"
	"time"
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Urgency is the priority tier a requester attaches to a blood request.
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

// ParseUrgency accepts any casing and defaults an empty value to Medium.
func ParseUrgency(s string) (Urgency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return UrgencyMedium, nil
	case "low":
		return UrgencyLow, nil
	case "medium":
		return UrgencyMedium, nil
	case "high":
		return UrgencyHigh, nil
	}
	return "", fmt.Errorf("unknown urgency level %q", s)
}

// DonorProfile is a registered donor as seen by the matching engine.
type DonorProfile struct {
	ID           int64       `json:"id"`
	FullName     string      `json:"fullName"`
	MobileNumber string      `json:"mobileNumber"`
	BloodGroup   BloodGroup  `json:"bloodGroup"`
	Location     Coordinates `json:"location"`
	LastDonation *time.Time  `json:"lastDonation,omitempty"`
	Smoking      bool        `json:"smoking"`
	Drinking     bool        `json:"drinking"`
	Available    bool        `json:"available"`
	Approved     bool        `json:"approved"`
}

// RequestProfile describes a need for blood at a hospital.
// RequesterID is zero for requests raised on behalf of nobody in the pool.
type RequestProfile struct {
	ID          int64       `json:"id"`
	RequesterID int64       `json:"requesterId,omitempty"`
	BloodGroup  BloodGroup  `json:"bloodGroup"`
	Location    Coordinates `json:"location"`
	Urgency     Urgency     `json:"urgency"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Tier is the qualitative label shown next to a ranked donor.
type Tier string

const (
	TierStrong   Tier = "strong"
	TierModerate Tier = "moderate"
)

// Breakdown carries the component scores behind a total.
type Breakdown struct {
	Location   float64 `json:"location"`
	Recency    float64 `json:"recency"`
	Health     float64 `json:"health"`
	Total      float64 `json:"total"`
	DistanceKm float64 `json:"distanceKm"`
	DaysSince  int     `json:"daysSinceLastDonation"`
	Blocked    bool    `json:"blocked"`
}

// MatchResult is one entry of a ranked shortlist.
type MatchResult struct {
	Donor      DonorProfile `json:"donor"`
	Score      float64      `json:"score"`
	DistanceKm float64      `json:"distanceKm"`
	Tier       Tier         `json:"tier"`
	Breakdown  Breakdown    `json:"breakdown"`
}

// Stats summarises what happened to a donor pool during one ranking.
type Stats struct {
	PoolSize   int `json:"poolSize"`
	Eligible   int `json:"eligible"`
	InCooldown int `json:"inCooldown"`
	Discarded  int `json:"discarded"`
	Returned   int `json:"returned"`
	Strong     int `json:"strong"`
}

// Ranking is the full outcome of Ranker.Rank.
type Ranking struct {
	Results  []MatchResult `json:"results"`
	Stats    Stats         `json:"stats"`
	Settings Settings      `json:"settings"`
	RankedAt time.Time     `json:"rankedAt"`
}
