// internal/donorindex/document.go
package donorindex

import (
	"math"
	"time"

	"lifelink-workers/internal/matching"
)

const dateLayout = "2006-01-02"

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Document is the indexed form of a donor. Donors with unusable
// coordinates are indexed without a location.
type Document struct {
	ID               int64     `json:"id"`
	FullName         string    `json:"fullName"`
	MobileNumber     string    `json:"mobileNumber"`
	BloodGroup       string    `json:"bloodGroup"`
	Location         *geoPoint `json:"location,omitempty"`
	LastDonationDate string    `json:"lastDonationDate,omitempty"`
	Smoking          bool      `json:"smoking"`
	Drinking         bool      `json:"drinking"`
	Available        bool      `json:"available"`
	Approved         bool      `json:"approved"`
	IndexedAt        time.Time `json:"indexedAt"`
}

func FromDonor(d matching.DonorProfile, now time.Time) Document {
	doc := Document{
		ID:           d.ID,
		FullName:     d.FullName,
		MobileNumber: d.MobileNumber,
		BloodGroup:   string(d.BloodGroup),
		Smoking:      d.Smoking,
		Drinking:     d.Drinking,
		Available:    d.Available,
		Approved:     d.Approved,
		IndexedAt:    now.UTC(),
	}
	if d.Location.Valid() {
		doc.Location = &geoPoint{Lat: d.Location.Latitude, Lon: d.Location.Longitude}
	}
	if d.LastDonation != nil {
		doc.LastDonationDate = d.LastDonation.Format(dateLayout)
	}
	return doc
}

// Donor converts the document back. A missing location becomes NaN so the
// ranker applies its penalty distance, as it would for the source row.
func (doc Document) Donor() matching.DonorProfile {
	d := matching.DonorProfile{
		ID:           doc.ID,
		FullName:     doc.FullName,
		MobileNumber: doc.MobileNumber,
		BloodGroup:   matching.BloodGroup(doc.BloodGroup),
		Smoking:      doc.Smoking,
		Drinking:     doc.Drinking,
		Available:    doc.Available,
		Approved:     doc.Approved,
	}
	if doc.Location != nil {
		d.Location = matching.Coordinates{Latitude: doc.Location.Lat, Longitude: doc.Location.Lon}
	} else {
		d.Location = matching.Coordinates{Latitude: math.NaN(), Longitude: math.NaN()}
	}
	if doc.LastDonationDate != "" {
		if t, err := time.Parse(dateLayout, doc.LastDonationDate); err == nil {
			d.LastDonation = &t
		}
	}
	return d
}
