package storage

import (
	"database/sql"
	"encoding/json"
)

const dateLayout = "2006-01-02"

// dateParam maps an empty quote date to NULL. Dates travel as plain
// YYYY-MM-DD strings on the Go side and DATE columns in postgres.
func dateParam(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(dateLayout)
}

// amenitiesParam encodes an amenity list for a jsonb column; nil stays NULL.
func amenitiesParam(amenities []string) (any, error) {
	if amenities == nil {
		return nil, nil
	}
	payload, err := json.Marshal(amenities)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func decodeAmenities(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var amenities []string
	if err := json.Unmarshal(raw, &amenities); err != nil {
		return nil
	}
	return amenities
}
