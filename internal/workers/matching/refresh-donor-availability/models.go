// internal/workers/matching/refresh-donor-availability/models.go
package refreshavailability

import "time"

type Input struct {
	AsOf *time.Time `json:"asOf,omitempty"`
}

type Output struct {
	MadeAvailable   int64     `json:"madeAvailable"`
	MadeUnavailable int64     `json:"madeUnavailable"`
	CooldownDays    int       `json:"cooldownDays"`
	AsOf            time.Time `json:"asOf"`
}
