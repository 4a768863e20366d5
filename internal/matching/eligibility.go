package matching

import "time"

// DaysSinceDonation returns the calendar days between the donor's last
// donation and today, or missingDays when no donation is on record.
func DaysSinceDonation(last *time.Time, today time.Time, missingDays int) int {
	if last == nil || last.IsZero() {
		return missingDays
	}
	return daysBetween(*last, today)
}

// CooldownElapsed is the medical gate shared by eligibility, scoring and the
// stored availability refresh. A donation dated in the future never clears it.
func CooldownElapsed(last *time.Time, today time.Time, s Settings) bool {
	return DaysSinceDonation(last, today, s.MissingHistoryDays) >= s.CooldownDays
}

// IsEligible decides whether donor may be considered for request at all.
func IsEligible(donor DonorProfile, request RequestProfile, s Settings, today time.Time) bool {
	return isCandidate(donor, request) && CooldownElapsed(donor.LastDonation, today, s)
}

// isCandidate applies every eligibility rule except the cooldown.
func isCandidate(donor DonorProfile, request RequestProfile) bool {
	if request.RequesterID != 0 && donor.ID == request.RequesterID {
		return false
	}
	if !donor.BloodGroup.CanDonateTo(request.BloodGroup) {
		return false
	}
	return donor.Available && donor.Approved
}
