// internal/workers/matching/record-donation/models.go
package recorddonation

import "time"

type Input struct {
	DonorID   int64      `json:"donorId"`
	RequestID int64      `json:"requestId,omitempty"`
	DonatedAt *time.Time `json:"donatedAt,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type Output struct {
	DonationID     int64     `json:"donationId"`
	DonorID        int64     `json:"donorId"`
	RequestID      int64     `json:"requestId,omitempty"`
	DonatedAt      time.Time `json:"donatedAt"`
	NextEligibleAt time.Time `json:"nextEligibleAt"`
	Available      bool      `json:"available"`
}
