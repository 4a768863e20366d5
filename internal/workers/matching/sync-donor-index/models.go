// internal/workers/matching/sync-donor-index/models.go
package syncdonorindex

import "time"

// Input selects donors to reindex. No ids means the whole users table.
type Input struct {
	DonorIDs []int64 `json:"donorIds,omitempty"`
	Recreate bool    `json:"recreate,omitempty"`
}

type Output struct {
	Index     string    `json:"index"`
	Created   bool      `json:"created"`
	Loaded    int       `json:"loaded"`
	Indexed   uint64    `json:"indexed"`
	Failed    uint64    `json:"failed"`
	FailedIDs []string  `json:"failedIds,omitempty"`
	SyncedAt  time.Time `json:"syncedAt"`
}
