package matching

import (
	"fmt"
	"strings"
)

// BloodGroup is an ABO/Rh group code such as "A+" or "O-".
type BloodGroup string

const (
	APositive  BloodGroup = "A+"
	ANegative  BloodGroup = "A-"
	BPositive  BloodGroup = "B+"
	BNegative  BloodGroup = "B-"
	ABPositive BloodGroup = "AB+"
	ABNegative BloodGroup = "AB-"
	OPositive  BloodGroup = "O+"
	ONegative  BloodGroup = "O-"

	// UniversalDonor can be offered for any request.
	UniversalDonor = ONegative
)

// AllBloodGroups lists every supported group in display order.
var AllBloodGroups = []BloodGroup{
	APositive, ANegative, BPositive, BNegative,
	ABPositive, ABNegative, OPositive, ONegative,
}

// ParseBloodGroup normalises s ("ab+", " O- ") and rejects unknown codes.
func ParseBloodGroup(s string) (BloodGroup, error) {
	g := BloodGroup(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("unknown blood group %q", s)
	}
	return g, nil
}

func (g BloodGroup) Valid() bool {
	for _, known := range AllBloodGroups {
		if g == known {
			return true
		}
	}
	return false
}

func (g BloodGroup) String() string { return string(g) }

// CanDonateTo reports whether a donor of group g may be offered for a
// request of group requested. Only exact matches and O- qualify.
func (g BloodGroup) CanDonateTo(requested BloodGroup) bool {
	return g == requested || g == UniversalDonor
}

// SearchGroups returns the donor groups worth fetching for a request.
func SearchGroups(requested BloodGroup) []BloodGroup {
	if requested == UniversalDonor {
		return []BloodGroup{UniversalDonor}
	}
	return []BloodGroup{requested, UniversalDonor}
}
