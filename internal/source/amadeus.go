package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tokyosniper/internal/cache"
	"tokyosniper/internal/model"
)

const (
	amadeusSourceID = "amadeus"
	amadeusTokenKey = "amadeus:token"

	// Refresh one minute before the token's own expiry.
	amadeusTokenSafety = 60 * time.Second
)

// AmadeusOptions parameterise the Amadeus flight-offers adapter.
type AmadeusOptions struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Amadeus queries the Amadeus flight-offers API. OAuth tokens are cached in
// the injected cache collaborator keyed by source, not per request.
type Amadeus struct {
	opts    AmadeusOptions
	client  *http.Client
	cache   cache.Cache
	norm    *Normalizer
	logger  zerolog.Logger
	baseURL string
}

// NewAmadeus constructs the adapter.
func NewAmadeus(opts AmadeusOptions, c cache.Cache, norm *Normalizer, logger zerolog.Logger) *Amadeus {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://test.api.amadeus.com"
	}

	return &Amadeus{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		cache:   c,
		norm:    norm,
		logger:  logger.With().Str("component", "source_amadeus").Logger(),
		baseURL: baseURL,
	}
}

func (a *Amadeus) ID() string { return amadeusSourceID }

type amadeusSegment struct {
	CarrierCode string `json:"carrierCode"`
	Departure   struct {
		IataCode string `json:"iataCode"`
		At       string `json:"at"`
	} `json:"departure"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusOffer struct {
	Price struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"price"`
	Itineraries []amadeusItinerary `json:"itineraries"`
}

type amadeusResponse struct {
	Data   []json.RawMessage `json:"data"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

// SearchFlights runs one flight-offers query. All failure modes are folded
// into the result.
func (a *Amadeus) SearchFlights(ctx context.Context, origin, destination, departureDate, returnDate string) FlightResult {
	token, err := a.token(ctx)
	if err != nil {
		return flightFailure(amadeusSourceID, err.Error())
	}

	params := url.Values{}
	params.Set("originLocationCode", origin)
	params.Set("destinationLocationCode", destination)
	params.Set("departureDate", departureDate)
	params.Set("adults", "1")
	params.Set("currencyCode", "EUR")
	params.Set("max", "50")
	if returnDate != "" {
		params.Set("returnDate", returnDate)
	}

	endpoint := a.baseURL + "/v2/shopping/flight-offers?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return flightFailure(amadeusSourceID, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return flightFailure(amadeusSourceID, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return flightFailure(amadeusSourceID, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return flightFailure(amadeusSourceID,
			fmt.Sprintf("amadeus status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload amadeusResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return flightFailure(amadeusSourceID, "parse amadeus response: "+err.Error())
	}
	if len(payload.Errors) > 0 {
		details := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			details = append(details, e.Detail)
		}
		return flightFailure(amadeusSourceID, strings.Join(details, ", "))
	}

	quotes := make([]model.FlightQuote, 0, len(payload.Data))
	for _, raw := range payload.Data {
		var offer amadeusOffer
		if err := json.Unmarshal(raw, &offer); err != nil {
			continue
		}
		if quote, ok := a.quoteFromOffer(ctx, offer, raw, origin, destination, departureDate, returnDate); ok {
			quotes = append(quotes, quote)
		}
	}

	return FlightResult{Success: true, Quotes: quotes, Source: amadeusSourceID}
}

func (a *Amadeus) quoteFromOffer(ctx context.Context, offer amadeusOffer, raw json.RawMessage, origin, destination, departureDate, returnDate string) (model.FlightQuote, bool) {
	amount, err := strconv.ParseFloat(offer.Price.Total, 64)
	if err != nil {
		return model.FlightQuote{}, false
	}

	code := offer.Price.Currency
	if code == "" {
		code = "EUR"
	}
	price, ok := a.norm.Price(ctx, amount, code)
	if !ok {
		return model.FlightQuote{}, false
	}

	if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
		return model.FlightQuote{}, false
	}
	outbound := offer.Itineraries[0]

	stops := len(outbound.Segments) - 1
	if stops < 0 {
		stops = 0
	}

	depDate := departureDate
	if at := outbound.Segments[0].Departure.At; at != "" {
		depDate = strings.SplitN(at, "T", 2)[0]
	}

	retDate := returnDate
	if len(offer.Itineraries) > 1 && len(offer.Itineraries[1].Segments) > 0 {
		if at := offer.Itineraries[1].Segments[0].Departure.At; at != "" {
			retDate = strings.SplitN(at, "T", 2)[0]
		}
	}

	return model.FlightQuote{
		Origin:          origin,
		Destination:     destination,
		DepartureDate:   depDate,
		ReturnDate:      retDate,
		Airline:         AirlineName(outbound.Segments[0].CarrierCode),
		PriceEurCents:   price.EurCents,
		PriceUsdCents:   price.UsdCents,
		PriceRsdCents:   price.RsdCents,
		Source:          amadeusSourceID,
		Stops:           stops,
		DurationMinutes: parseISODuration(outbound.Duration),
		BookingURL:      SkyscannerURL(origin, destination, depDate, retDate),
		RawData:         raw,
	}, true
}

type amadeusTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Amadeus) token(ctx context.Context) (string, error) {
	if cached, ok := a.cache.Get(ctx, amadeusTokenKey); ok {
		return cached, nil
	}

	if a.opts.APIKey == "" || a.opts.APISecret == "" {
		return "", errors.New("amadeus api key and secret not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.opts.APIKey)
	form.Set("client_secret", a.opts.APISecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("amadeus auth: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("amadeus auth: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("amadeus auth failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload amadeusTokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("amadeus auth: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("amadeus auth returned empty token")
	}

	ttl := time.Duration(payload.ExpiresIn)*time.Second - amadeusTokenSafety
	if ttl > 0 {
		a.cache.Set(ctx, amadeusTokenKey, payload.AccessToken, ttl)
	}
	return payload.AccessToken, nil
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?`)

// parseISODuration converts an ISO-8601 duration like PT12H30M to minutes.
// Unparseable input yields zero.
func parseISODuration(duration string) int {
	match := isoDurationRe.FindStringSubmatch(duration)
	if match == nil {
		return 0
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	return hours*60 + minutes
}

var _ FlightSource = (*Amadeus)(nil)
