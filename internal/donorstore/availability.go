// internal/donorstore/availability.go
package donorstore

import (
	"context"
	"fmt"
	"time"
)

type AvailabilityChange struct {
	Restored  int64 `json:"restored"`
	Suspended int64 `json:"suspended"`
}

// RefreshAvailability recomputes is_available from last_donation_date.
// Only approved donors are restored; blocked accounts stay unavailable.
func (s *Store) RefreshAvailability(ctx context.Context, today time.Time, cooldownDays int) (AvailabilityChange, error) {
	var change AvailabilityChange
	cutoff := today.AddDate(0, 0, -cooldownDays).Format("2006-01-02")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return change, fmt.Errorf("begin availability refresh: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET is_available = TRUE
		WHERE is_available = FALSE AND is_approved = TRUE
		  AND (last_donation_date IS NULL OR last_donation_date <= $1::date)`, cutoff)
	if err != nil {
		return change, fmt.Errorf("restore availability: %w", err)
	}
	change.Restored, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
		UPDATE users SET is_available = FALSE
		WHERE is_available = TRUE AND last_donation_date > $1::date`, cutoff)
	if err != nil {
		return change, fmt.Errorf("suspend availability: %w", err)
	}
	change.Suspended, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return change, fmt.Errorf("commit availability refresh: %w", err)
	}
	return change, nil
}
