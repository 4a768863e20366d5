// internal/donorindex/query.go
package donorindex

import (
	"fmt"

	"lifelink-workers/internal/matching"
)

// CandidateQuery narrows the index before ranking. It selects the same pool
// as the postgres candidate query: group, availability and approval.
type CandidateQuery struct {
	Groups []matching.BloodGroup

	// Center and RadiusKm form an opt-in distance bound. Donors without a
	// usable location always pass it, since ranking scores them with the
	// penalty distance. RadiusKm 0 disables it.
	Center   matching.Coordinates
	RadiusKm float64
}

// buildCandidateQuery returns one page of the candidate search. Hits are
// sorted by id so that searchAfter can resume after the last id seen.
func buildCandidateQuery(q CandidateQuery, size int, searchAfter *int64) map[string]interface{} {
	groups := make([]string, len(q.Groups))
	for i, g := range q.Groups {
		groups[i] = string(g)
	}

	filter := []interface{}{
		map[string]interface{}{"terms": map[string]interface{}{"bloodGroup": groups}},
		map[string]interface{}{"term": map[string]interface{}{"available": true}},
		map[string]interface{}{"term": map[string]interface{}{"approved": true}},
	}

	if q.RadiusKm > 0 && q.Center.Valid() {
		filter = append(filter, map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"geo_distance": map[string]interface{}{
							"distance": fmt.Sprintf("%gkm", q.RadiusKm),
							"location": map[string]interface{}{"lat": q.Center.Latitude, "lon": q.Center.Longitude},
						},
					},
					map[string]interface{}{
						"bool": map[string]interface{}{
							"must_not": map[string]interface{}{"exists": map[string]interface{}{"field": "location"}},
						},
					},
				},
				"minimum_should_match": 1,
			},
		})
	}

	body := map[string]interface{}{
		"size":             size,
		"sort":             []interface{}{map[string]interface{}{"id": "asc"}},
		"track_total_hits": false,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filter},
		},
	}
	if searchAfter != nil {
		body["search_after"] = []interface{}{*searchAfter}
	}
	return body
}
