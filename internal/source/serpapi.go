package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tokyosniper/internal/model"
)

const serpapiSourceID = "serpapi"

// SerpAPIOptions parameterise the SerpAPI Google Flights adapter.
type SerpAPIOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SerpAPI queries the Google Flights engine via SerpAPI.
type SerpAPI struct {
	opts    SerpAPIOptions
	client  *http.Client
	norm    *Normalizer
	logger  zerolog.Logger
	baseURL string
}

// NewSerpAPI constructs the adapter.
func NewSerpAPI(opts SerpAPIOptions, norm *Normalizer, logger zerolog.Logger) *SerpAPI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://serpapi.com"
	}

	return &SerpAPI{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		norm:    norm,
		logger:  logger.With().Str("component", "source_serpapi").Logger(),
		baseURL: baseURL,
	}
}

func (s *SerpAPI) ID() string { return serpapiSourceID }

type serpFlightLeg struct {
	Airline string `json:"airline"`
}

type serpFlight struct {
	Price         float64         `json:"price"`
	Flights       []serpFlightLeg `json:"flights"`
	Layovers      []any           `json:"layovers"`
	TotalDuration int             `json:"total_duration"`
}

type serpResponse struct {
	BestFlights  []json.RawMessage `json:"best_flights"`
	OtherFlights []json.RawMessage `json:"other_flights"`
	Error        string            `json:"error"`
}

func (s *SerpAPI) SearchFlights(ctx context.Context, origin, destination, departureDate, returnDate string) FlightResult {
	if s.opts.APIKey == "" {
		return flightFailure(serpapiSourceID, "serpapi api key not configured")
	}

	params := url.Values{}
	params.Set("engine", "google_flights")
	params.Set("departure_id", origin)
	params.Set("arrival_id", destination)
	params.Set("outbound_date", departureDate)
	params.Set("currency", "EUR")
	params.Set("hl", "en")
	params.Set("api_key", s.opts.APIKey)
	if returnDate != "" {
		params.Set("type", "1")
		params.Set("return_date", returnDate)
	} else {
		params.Set("type", "2")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return flightFailure(serpapiSourceID, err.Error())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return flightFailure(serpapiSourceID, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return flightFailure(serpapiSourceID, err.Error())
	}

	var payload serpResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return flightFailure(serpapiSourceID,
			fmt.Sprintf("parse serpapi response (status %d): %s", resp.StatusCode, err.Error()))
	}
	if payload.Error != "" {
		return flightFailure(serpapiSourceID, payload.Error)
	}

	all := make([]json.RawMessage, 0, len(payload.BestFlights)+len(payload.OtherFlights))
	all = append(all, payload.BestFlights...)
	all = append(all, payload.OtherFlights...)

	quotes := make([]model.FlightQuote, 0, len(all))
	for _, raw := range all {
		var flight serpFlight
		if err := json.Unmarshal(raw, &flight); err != nil {
			continue
		}

		price, ok := s.norm.Price(ctx, flight.Price, "EUR")
		if !ok {
			continue
		}

		airlines := make([]string, 0, len(flight.Flights))
		for _, leg := range flight.Flights {
			if leg.Airline != "" {
				airlines = append(airlines, leg.Airline)
			}
		}

		quotes = append(quotes, model.FlightQuote{
			Origin:          origin,
			Destination:     destination,
			DepartureDate:   departureDate,
			ReturnDate:      returnDate,
			Airline:         strings.Join(airlines, ", "),
			PriceEurCents:   price.EurCents,
			PriceUsdCents:   price.UsdCents,
			PriceRsdCents:   price.RsdCents,
			Source:          serpapiSourceID,
			Stops:           len(flight.Layovers),
			DurationMinutes: flight.TotalDuration,
			RawData:         raw,
		})
	}

	return FlightResult{Success: true, Quotes: quotes, Source: serpapiSourceID}
}

var _ FlightSource = (*SerpAPI)(nil)
