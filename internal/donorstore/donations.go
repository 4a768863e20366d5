// internal/donorstore/donations.go
package donorstore

import (
	"context"
	"fmt"
	"time"
)

type Donation struct {
	ID        int64     `json:"donationId"`
	DonorID   int64     `json:"donorId"`
	RequestID int64     `json:"requestId,omitempty"`
	DonatedAt time.Time `json:"donatedAt"`
	Notes     string    `json:"notes,omitempty"`
}

// RecordDonation stores a donation and puts the donor into cooldown.
func (s *Store) RecordDonation(ctx context.Context, d Donation) (Donation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return d, fmt.Errorf("begin donation: %w", err)
	}
	defer tx.Rollback()

	day := d.DonatedAt.Format("2006-01-02")
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET last_donation_date = $1::date, is_available = FALSE WHERE id = $2`,
		day, d.DonorID)
	if err != nil {
		return d, fmt.Errorf("update donor %d: %w", d.DonorID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return d, fmt.Errorf("%w: donor %d", ErrDonorNotFound, d.DonorID)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO donation_history (donor_id, donation_date, notes)
		VALUES ($1, $2::date, $3) RETURNING id`,
		d.DonorID, day, d.Notes).Scan(&d.ID); err != nil {
		return d, fmt.Errorf("insert donation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return d, fmt.Errorf("commit donation: %w", err)
	}
	return d, nil
}
