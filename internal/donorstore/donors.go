// internal/donorstore/donors.go
package donorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"lifelink-workers/internal/matching"
)

const donorColumns = `id, full_name, mobile_number, blood_group, latitude, longitude,
		last_donation_date, COALESCE(smoking, FALSE), COALESCE(drinking, FALSE),
		COALESCE(is_available, TRUE), COALESCE(is_approved, TRUE)`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDonor(row rowScanner) (matching.DonorProfile, error) {
	var (
		d         matching.DonorProfile
		group     string
		lastDonor sql.NullTime
	)
	err := row.Scan(&d.ID, &d.FullName, &d.MobileNumber, &group,
		&d.Location.Latitude, &d.Location.Longitude, &lastDonor,
		&d.Smoking, &d.Drinking, &d.Available, &d.Approved)
	if err != nil {
		return d, err
	}
	d.BloodGroup = matching.BloodGroup(strings.ToUpper(strings.TrimSpace(group)))
	if lastDonor.Valid {
		t := lastDonor.Time
		d.LastDonation = &t
	}
	return d, nil
}

func collectDonors(rows *sql.Rows) ([]matching.DonorProfile, error) {
	defer rows.Close()
	donors := []matching.DonorProfile{}
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		donors = append(donors, d)
	}
	return donors, rows.Err()
}

// Candidates returns available, approved donors whose group is one of
// groups. Compatibility and cooldown are still decided by the ranker.
func (s *Store) Candidates(ctx context.Context, groups []matching.BloodGroup) ([]matching.DonorProfile, error) {
	codes := make([]string, len(groups))
	for i, g := range groups {
		codes[i] = string(g)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+donorColumns+`
		FROM users
		WHERE blood_group = ANY($1) AND is_available = TRUE AND is_approved = TRUE
		ORDER BY id`, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	donors, err := collectDonors(rows)
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	return donors, nil
}

func (s *Store) Donor(ctx context.Context, id int64) (matching.DonorProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donorColumns+` FROM users WHERE id = $1`, id)
	d, err := scanDonor(row)
	if err == sql.ErrNoRows {
		return d, fmt.Errorf("%w: donor %d", ErrDonorNotFound, id)
	}
	if err != nil {
		return d, fmt.Errorf("query donor %d: %w", id, err)
	}
	return d, nil
}

// DonorsByIDs returns the donors that exist among ids, in id order.
func (s *Store) DonorsByIDs(ctx context.Context, ids []int64) ([]matching.DonorProfile, error) {
	if len(ids) == 0 {
		return []matching.DonorProfile{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+donorColumns+`
		FROM users
		WHERE id = ANY($1)
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query donors by id: %w", err)
	}
	donors, err := collectDonors(rows)
	if err != nil {
		return nil, fmt.Errorf("scan donors: %w", err)
	}
	return donors, nil
}

// AllDonors streams every donor row, used to rebuild the search index.
func (s *Store) AllDonors(ctx context.Context) ([]matching.DonorProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+donorColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query donors: %w", err)
	}
	donors, err := collectDonors(rows)
	if err != nil {
		return nil, fmt.Errorf("scan donors: %w", err)
	}
	return donors, nil
}
