package source

import (
	"context"

	"tokyosniper/internal/model"
	"tokyosniper/internal/trip"
)

// FlightResult is the outcome of one flight-source query. Failures are data:
// adapters never return an error to the caller. Success with zero quotes
// means the source was reachable but nothing matched.
type FlightResult struct {
	Success bool
	Quotes  []model.FlightQuote
	Source  string
	Err     string
}

// StayResult is the stay-source analogue of FlightResult.
type StayResult struct {
	Success bool
	Quotes  []model.StayQuote
	Source  string
	Err     string
}

// FlightSource queries one external flight-search API for one route and date
// pair. returnDate may be empty for one-way searches.
type FlightSource interface {
	ID() string
	SearchFlights(ctx context.Context, origin, destination, departureDate, returnDate string) FlightResult
}

// StaySource queries one external accommodation-search API for one
// neighborhood and stay window.
type StaySource interface {
	ID() string
	SearchStays(ctx context.Context, neighborhood trip.Neighborhood, checkIn, checkOut string) StayResult
}

func flightFailure(source, msg string) FlightResult {
	return FlightResult{Success: false, Source: source, Err: msg}
}

func stayFailure(source, msg string) StayResult {
	return StayResult{Success: false, Source: source, Err: msg}
}
