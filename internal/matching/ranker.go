package matching

import (
	"sort"
	"time"
)

// RankDonors returns at most limit eligible donors from pool ordered by
// score, best first. Equal scores are ordered by distance and then donor ID
// so identical input always gives identical output. limit <= 0 falls back
// to s.DefaultLimit. The result is never nil.
func RankDonors(request RequestProfile, pool []DonorProfile, limit int, s Settings, today time.Time) []MatchResult {
	results, _ := rank(request, pool, limit, s, today)
	return results
}

func rank(request RequestProfile, pool []DonorProfile, limit int, s Settings, today time.Time) ([]MatchResult, Stats) {
	stats := Stats{PoolSize: len(pool)}
	if limit <= 0 {
		limit = s.DefaultLimit
	}

	ranked := make([]MatchResult, 0, len(pool))
	for _, donor := range pool {
		if !isCandidate(donor, request) {
			continue
		}
		if !CooldownElapsed(donor.LastDonation, today, s) {
			stats.InCooldown++
			continue
		}
		stats.Eligible++

		b := Score(donor, request.Location, s, today)
		if b.Total <= 0 {
			stats.Discarded++
			continue
		}

		ranked = append(ranked, MatchResult{
			Donor:      donor,
			Score:      b.Total,
			DistanceKm: b.DistanceKm,
			Tier:       tierFor(b.Total, s),
			Breakdown:  b,
		})
	}

	sortMatches(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	stats.Returned = len(ranked)
	for _, r := range ranked {
		if r.Tier == TierStrong {
			stats.Strong++
		}
	}
	return ranked, stats
}

// sortMatches orders by score desc, then distance asc, then donor ID asc.
func sortMatches(ranked []MatchResult) {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.Donor.ID < b.Donor.ID
	})
}

// Ranker binds the ranking to a settings source and a clock.
type Ranker struct {
	settings SettingsProvider
	clock    Clock
}

func NewRanker(settings SettingsProvider, clock Clock) *Ranker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ranker{settings: settings, clock: clock}
}

// Rank reads one settings snapshot and one "today" for the whole pool.
func (r *Ranker) Rank(request RequestProfile, pool []DonorProfile, limit int) Ranking {
	s := r.settings.Snapshot()
	now := r.clock.Now()
	results, stats := rank(request, pool, limit, s, now)
	return Ranking{
		Results:  results,
		Stats:    stats,
		Settings: s,
		RankedAt: now,
	}
}

// ScoreDonor evaluates a single donor against request with the current
// settings, reporting eligibility separately from the score.
func (r *Ranker) ScoreDonor(request RequestProfile, donor DonorProfile) (Breakdown, bool, Tier) {
	s := r.settings.Snapshot()
	now := r.clock.Now()
	b := Score(donor, request.Location, s, now)
	return b, IsEligible(donor, request, s, now), tierFor(b.Total, s)
}
