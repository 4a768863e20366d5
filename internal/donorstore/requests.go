// internal/donorstore/requests.go
package donorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"lifelink-workers/internal/matching"
)

// Request loads a blood request, serving repeated lookups from Redis.
func (s *Store) Request(ctx context.Context, id int64) (matching.RequestProfile, error) {
	key := fmt.Sprintf("%s%d", requestKeyPrefix, id)

	var req matching.RequestProfile
	if s.cacheGet(ctx, "request", key, &req) {
		return req, nil
	}

	var (
		requester sql.NullInt64
		group     string
		urgency   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, requester_id, blood_group, req_latitude, req_longitude, urgency_level, created_at
		FROM blood_requests WHERE id = $1`, id).
		Scan(&req.ID, &requester, &group, &req.Location.Latitude, &req.Location.Longitude, &urgency, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return req, fmt.Errorf("%w: request %d", ErrRequestNotFound, id)
	}
	if err != nil {
		return req, fmt.Errorf("query request %d: %w", id, err)
	}

	req.RequesterID = requester.Int64
	req.BloodGroup = matching.BloodGroup(strings.ToUpper(strings.TrimSpace(group)))
	req.Urgency, err = matching.ParseUrgency(urgency.String)
	if err != nil {
		req.Urgency = matching.UrgencyMedium
	}

	s.cacheSet(ctx, key, req, s.opts.RequestTTL)
	return req, nil
}

// InvalidateRequest drops a cached request after it changes.
func (s *Store) InvalidateRequest(ctx context.Context, id int64) {
	s.cacheDel(ctx, fmt.Sprintf("%s%d", requestKeyPrefix, id))
}
