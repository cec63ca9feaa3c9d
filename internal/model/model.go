package model

import (
	"encoding/json"
	"time"
)

// Currency identifies one of the four tracked denominations.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyRSD Currency = "RSD"
	CurrencyJPY Currency = "JPY"
)

// Currencies lists every supported denomination.
var Currencies = []Currency{CurrencyEUR, CurrencyUSD, CurrencyRSD, CurrencyJPY}

// ParseCurrency returns the matching Currency, or false for unknown codes.
func ParseCurrency(code string) (Currency, bool) {
	switch Currency(code) {
	case CurrencyEUR, CurrencyUSD, CurrencyRSD, CurrencyJPY:
		return Currency(code), true
	}
	return "", false
}

// MultiPrice carries one observed price in every denomination, integer minor
// units. All fields are derived together from a single canonical amount at
// ingestion time; they are never partially filled.
type MultiPrice struct {
	EurCents int64
	UsdCents int64
	RsdCents int64
	JpyCents int64
}

// FlightQuote is a point-in-time price observation for one itinerary.
// ReturnDate is empty for one-way quotes; DurationMinutes zero means unknown.
// Flights track EUR/USD/RSD only.
type FlightQuote struct {
	ID              int64
	Origin          string
	Destination     string
	DepartureDate   string
	ReturnDate      string
	Airline         string
	PriceEurCents   int64
	PriceUsdCents   int64
	PriceRsdCents   int64
	Source          string
	Stops           int
	DurationMinutes int
	BookingURL      string
	RawData         json.RawMessage
	CheckedAt       time.Time
}

// StayQuote is a nightly-price observation for one property over one stay
// window. Name+Platform+Neighborhood is the stable accommodation identity.
type StayQuote struct {
	ID              int64
	AccommodationID int64
	Name            string
	Neighborhood    string
	Platform        string
	URL             string
	PropertyType    string
	Rating          float64
	ReviewCount     int
	Amenities       []string
	NightlyEurCents int64
	NightlyUsdCents int64
	NightlyRsdCents int64
	NightlyJpyCents int64
	TotalUsdCents   int64
	CheckIn         string
	CheckOut        string
	Source          string
	RawData         json.RawMessage
	CheckedAt       time.Time
}

// Accommodation is the persisted identity of one property.
type Accommodation struct {
	ID           int64
	Name         string
	Neighborhood string
	Platform     string
	URL          string
	PropertyType string
	Rating       float64
	ReviewCount  int
	Amenities    []string
	CreatedAt    time.Time
}

// Alert kinds.
const (
	KindFlight = "flight"
	KindStay   = "stay"
)

// AlertConfig is a user-defined threshold rule.
type AlertConfig struct {
	ID             int64
	Kind           string
	Label          string
	ThresholdCents int64
	Currency       Currency
	Enabled        bool
	CreatedAt      time.Time
}

// AlertHistoryEntry records one deal included in a delivered notification.
// ConfigID is nil for deals matched by a built-in rule.
type AlertHistoryEntry struct {
	ID         int64
	ConfigID   *int64
	Kind       string
	Message    string
	PriceCents int64
	Currency   Currency
	SentAt     time.Time
}
