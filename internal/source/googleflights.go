package source

import (
	"context"

	"github.com/rs/zerolog"

	"tokyosniper/internal/model"
)

// GoogleFlights scrapes Google Flights through its Apify actor.
type GoogleFlights struct {
	client *apifyClient
	norm   *Normalizer
	logger zerolog.Logger
}

// NewGoogleFlights constructs the adapter.
func NewGoogleFlights(opts ApifyOptions, norm *Normalizer, logger zerolog.Logger) *GoogleFlights {
	return &GoogleFlights{
		client: newApifyClient(opts),
		norm:   norm,
		logger: logger.With().Str("component", "source_googleflights").Logger(),
	}
}

func (g *GoogleFlights) ID() string { return "googleflights" }

func (g *GoogleFlights) SearchFlights(ctx context.Context, origin, destination, departureDate, returnDate string) FlightResult {
	items, err := g.client.runActor(ctx, actorGoogleFlights, map[string]any{
		"origin":        origin,
		"destination":   destination,
		"departureDate": departureDate,
		"returnDate":    returnDate,
		"currency":      "EUR",
		"adults":        1,
	})
	if err != nil {
		return flightFailure(g.ID(), err.Error())
	}

	quotes := make([]model.FlightQuote, 0, len(items))
	for _, raw := range items {
		if quote, ok := flightQuoteFromItem(ctx, g.norm, raw, origin, destination, departureDate, returnDate, g.ID()); ok {
			quotes = append(quotes, quote)
		}
	}
	return FlightResult{Success: true, Quotes: quotes, Source: g.ID()}
}

var _ FlightSource = (*GoogleFlights)(nil)
