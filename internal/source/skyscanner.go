package source

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"tokyosniper/internal/model"
)

// apifyFlightItem covers the field variants emitted by the flight scraping
// actors (camelCase and snake_case).
type apifyFlightItem struct {
	Price             float64  `json:"price"`
	Currency          string   `json:"currency"`
	Airline           string   `json:"airline"`
	Airlines          []string `json:"airlines"`
	DepartureDate     string   `json:"departureDate"`
	DepartureDateAlt  string   `json:"departure_date"`
	ReturnDate        string   `json:"returnDate"`
	ReturnDateAlt     string   `json:"return_date"`
	Origin            string   `json:"origin"`
	Destination       string   `json:"destination"`
	Stops             int      `json:"stops"`
	Duration          int      `json:"duration"`
	DurationMinutes   int      `json:"durationMinutes"`
	URL               string   `json:"url"`
	Link              string   `json:"link"`
}

// flightQuoteFromItem normalizes one scraped item; false when the item has no
// usable price.
func flightQuoteFromItem(ctx context.Context, norm *Normalizer, raw json.RawMessage, origin, destination, departureDate, returnDate, sourceID string) (model.FlightQuote, bool) {
	var item apifyFlightItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return model.FlightQuote{}, false
	}

	code := item.Currency
	if code == "" {
		code = "EUR"
	}
	price, ok := norm.Price(ctx, item.Price, code)
	if !ok {
		return model.FlightQuote{}, false
	}

	quote := model.FlightQuote{
		Origin:        origin,
		Destination:   destination,
		DepartureDate: firstNonEmpty(item.DepartureDate, item.DepartureDateAlt, departureDate),
		ReturnDate:    firstNonEmpty(item.ReturnDate, item.ReturnDateAlt, returnDate),
		Airline:       item.Airline,
		PriceEurCents: price.EurCents,
		PriceUsdCents: price.UsdCents,
		PriceRsdCents: price.RsdCents,
		Source:        sourceID,
		Stops:         item.Stops,
		BookingURL:    firstNonEmpty(item.URL, item.Link),
		RawData:       raw,
	}
	if item.Origin != "" {
		quote.Origin = item.Origin
	}
	if item.Destination != "" {
		quote.Destination = item.Destination
	}
	if quote.Airline == "" && len(item.Airlines) > 0 {
		quote.Airline = strings.Join(item.Airlines, ", ")
	}
	if item.DurationMinutes > 0 {
		quote.DurationMinutes = item.DurationMinutes
	} else if item.Duration > 0 {
		quote.DurationMinutes = item.Duration
	}
	return quote, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Skyscanner scrapes Skyscanner through its Apify actor.
type Skyscanner struct {
	client *apifyClient
	norm   *Normalizer
	logger zerolog.Logger
}

// NewSkyscanner constructs the adapter.
func NewSkyscanner(opts ApifyOptions, norm *Normalizer, logger zerolog.Logger) *Skyscanner {
	return &Skyscanner{
		client: newApifyClient(opts),
		norm:   norm,
		logger: logger.With().Str("component", "source_skyscanner").Logger(),
	}
}

func (s *Skyscanner) ID() string { return "skyscanner" }

func (s *Skyscanner) SearchFlights(ctx context.Context, origin, destination, departureDate, returnDate string) FlightResult {
	items, err := s.client.runActor(ctx, actorSkyscanner, map[string]any{
		"origin":        origin,
		"destination":   destination,
		"departureDate": departureDate,
		"returnDate":    returnDate,
		"currency":      "EUR",
		"adults":        1,
		"cabinClass":    "economy",
	})
	if err != nil {
		return flightFailure(s.ID(), err.Error())
	}

	quotes := make([]model.FlightQuote, 0, len(items))
	for _, raw := range items {
		if quote, ok := flightQuoteFromItem(ctx, s.norm, raw, origin, destination, departureDate, returnDate, s.ID()); ok {
			quotes = append(quotes, quote)
		}
	}
	return FlightResult{Success: true, Quotes: quotes, Source: s.ID()}
}

var _ FlightSource = (*Skyscanner)(nil)
