// internal/donorindex/mapping.go
package donorindex

const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":               { "type": "long" },
      "fullName":         { "type": "text", "fields": { "raw": { "type": "keyword" } } },
      "mobileNumber":     { "type": "keyword", "index": false },
      "bloodGroup":       { "type": "keyword" },
      "location":         { "type": "geo_point" },
      "lastDonationDate": { "type": "date", "format": "yyyy-MM-dd" },
      "smoking":          { "type": "boolean" },
      "drinking":         { "type": "boolean" },
      "available":        { "type": "boolean" },
      "approved":         { "type": "boolean" },
      "indexedAt":        { "type": "date" }
    }
  }
}`
