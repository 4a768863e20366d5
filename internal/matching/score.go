package matching

import (
	"math"
	"time"
)

// Score rates donor against a request location.
//
// The total is location (max LocationMax, zero at DistanceCapKm) plus
// recency (linear up to RecencyCapDays) plus health (HealthMax minus
// HabitPenalty per habit). Donors inside the cooldown window score 0 but
// still carry their real distance.
func Score(donor DonorProfile, at Coordinates, s Settings, today time.Time) Breakdown {
	km, _ := distanceOrPenalty(donor.Location, at, s.PenaltyDistanceKm)
	return scoreAtDistance(donor, km, s, today)
}

func scoreAtDistance(donor DonorProfile, km float64, s Settings, today time.Time) Breakdown {
	b := Breakdown{
		DistanceKm: round2(km),
		DaysSince:  DaysSinceDonation(donor.LastDonation, today, s.MissingHistoryDays),
	}
	if b.DaysSince < s.CooldownDays {
		b.Blocked = true
		return b
	}

	location := locationScore(km, s)
	recency := recencyScore(b.DaysSince, s)
	health := healthScore(donor.Smoking, donor.Drinking, s)

	b.Location = round2(location)
	b.Recency = round2(recency)
	b.Health = round2(health)
	b.Total = round2(location + recency + health)
	return b
}

func locationScore(km float64, s Settings) float64 {
	decay := s.LocationMax / s.DistanceCapKm
	return math.Max(0, s.LocationMax-km*decay)
}

func recencyScore(days int, s Settings) float64 {
	return math.Min(s.RecencyMax, float64(days)/float64(s.RecencyCapDays)*s.RecencyMax)
}

func healthScore(smoking, drinking bool, s Settings) float64 {
	score := s.HealthMax
	if smoking {
		score -= s.HabitPenalty
	}
	if drinking {
		score -= s.HabitPenalty
	}
	return math.Max(0, score)
}

func tierFor(score float64, s Settings) Tier {
	if score > s.StrongThreshold {
		return TierStrong
	}
	return TierModerate
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
