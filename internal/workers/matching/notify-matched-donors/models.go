// internal/workers/matching/notify-matched-donors/models.go
package notifydonors

import (
	"time"

	"lifelink-workers/internal/matching"
)

type Input struct {
	RequestID    int64         `json:"requestId"`
	StrongOnly   bool          `json:"strongOnly,omitempty"`
	RankedDonors []RankedDonor `json:"rankedDonors"`
}

// RankedDonor is the subset of a rank-donors entry this worker reads.
type RankedDonor struct {
	DonorID    int64         `json:"donorId"`
	Score      float64       `json:"score"`
	Tier       matching.Tier `json:"tier"`
	DistanceKm float64       `json:"distanceKm,omitempty"`
}

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type Delivery struct {
	DonorID   int64  `json:"donorId"`
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Output struct {
	BatchID    string           `json:"batchId"`
	RequestID  int64            `json:"requestId"`
	Urgency    matching.Urgency `json:"urgency"`
	Deliveries []Delivery       `json:"deliveries"`
	Sent       int              `json:"sent"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	NotifiedAt time.Time        `json:"notifiedAt"`
}
