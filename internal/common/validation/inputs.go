// internal/common/validation/inputs.go
package validation

// Job variable schemas for the donor matching workers.
var (
	RankDonorsInput = MustCompile("rank-donors", `{
		"type": "object",
		"properties": {
			"requestId": {"type": "integer", "minimum": 1},
			"limit": {"type": "integer", "minimum": 0, "maximum": 100},
			"source": {"type": "string", "enum": ["postgres", "elasticsearch"]},
			"request": {
				"type": "object",
				"properties": {
					"requesterId": {"type": "integer", "minimum": 0},
					"bloodGroup": {"type": "string", "minLength": 2, "maxLength": 3},
					"latitude": {"type": "number", "minimum": -90, "maximum": 90},
					"longitude": {"type": "number", "minimum": -180, "maximum": 180},
					"urgency": {"type": "string", "enum": ["low", "medium", "high", "Low", "Medium", "High", ""]}
				},
				"required": ["bloodGroup", "latitude", "longitude"]
			}
		},
		"anyOf": [{"required": ["requestId"]}, {"required": ["request"]}]
	}`)

	CalculateDonorScoreInput = MustCompile("calculate-donor-score", `{
		"type": "object",
		"properties": {
			"requestId": {"type": "integer", "minimum": 1},
			"donorId": {"type": "integer", "minimum": 1},
			"request": {
				"type": "object",
				"properties": {
					"requesterId": {"type": "integer", "minimum": 0},
					"bloodGroup": {"type": "string", "minLength": 2, "maxLength": 3},
					"latitude": {"type": "number", "minimum": -90, "maximum": 90},
					"longitude": {"type": "number", "minimum": -180, "maximum": 180}
				},
				"required": ["bloodGroup", "latitude", "longitude"]
			}
		},
		"required": ["donorId"],
		"anyOf": [{"required": ["requestId"]}, {"required": ["request"]}]
	}`)

	RefreshAvailabilityInput = MustCompile("refresh-donor-availability", `{
		"type": "object",
		"properties": {
			"asOf": {"type": "string", "format": "date-time"}
		}
	}`)

	RecordDonationInput = MustCompile("record-donation", `{
		"type": "object",
		"properties": {
			"donorId": {"type": "integer", "minimum": 1},
			"requestId": {"type": "integer", "minimum": 1},
			"donatedAt": {"type": "string", "format": "date-time"},
			"notes": {"type": "string", "maxLength": 500}
		},
		"required": ["donorId"]
	}`)

	UpdateSettingsInput = MustCompile("update-matching-settings", `{
		"type": "object",
		"properties": {
			"donationGapDays": {"type": "integer", "minimum": 1},
			"emergencyRadiusKm": {"type": "number", "minimum": 0},
			"weights": {
				"type": "object",
				"properties": {
					"bloodGroup": {"type": "number", "minimum": 0},
					"distance": {"type": "number", "minimum": 0},
					"recency": {"type": "number", "minimum": 0},
					"health": {"type": "number", "minimum": 0}
				},
				"required": ["bloodGroup", "distance", "recency", "health"]
			},
			"updatedBy": {"type": "string"}
		},
		"minProperties": 1
	}`)

	NotifyMatchedDonorsInput = MustCompile("notify-matched-donors", `{
		"type": "object",
		"properties": {
			"requestId": {"type": "integer", "minimum": 1},
			"strongOnly": {"type": "boolean"},
			"rankedDonors": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"donorId": {"type": "integer", "minimum": 1},
						"score": {"type": "number"},
						"tier": {"type": "string", "enum": ["strong", "moderate"]},
						"distanceKm": {"type": "number", "minimum": 0}
					},
					"required": ["donorId", "score", "tier"]
				}
			}
		},
		"required": ["requestId", "rankedDonors"]
	}`)

	SyncDonorIndexInput = MustCompile("sync-donor-index", `{
		"type": "object",
		"properties": {
			"donorIds": {"type": "array", "items": {"type": "integer", "minimum": 1}},
			"recreate": {"type": "boolean"}
		}
	}`)
)
