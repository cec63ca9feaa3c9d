package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"tokyosniper/internal/trip"
)

// apifyTestServer serves the given dataset items for any actor run and records
// the decoded actor input.
func apifyTestServer(t *testing.T, items []map[string]any, gotInput *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/run-sync-get-dataset-items") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if gotInput != nil {
			_ = json.NewDecoder(r.Body).Decode(gotInput)
		}
		_ = json.NewEncoder(w).Encode(items)
	}))
}

func TestSkyscannerSearchFlights(t *testing.T) {
	var input map[string]any
	srv := apifyTestServer(t, []map[string]any{
		{
			"price":    680.50,
			"currency": "EUR",
			"airlines": []string{"LOT", "ANA"},
			"stops":    1,
			"duration": 900,
			"url":      "https://www.skyscanner.net/x",
		},
		{
			// Snake-case date variants, no currency, price only.
			"price":          120000.0,
			"currency":       "RSD",
			"airline":        "Air Serbia",
			"departure_date": "2026-03-09",
		},
		{
			// No usable price, skipped.
			"airline": "Wizz Air",
		},
	}, &input)
	defer srv.Close()

	s := NewSkyscanner(ApifyOptions{BaseURL: srv.URL, Token: "tok"}, testNormalizer(t), zerolog.Nop())

	result := s.SearchFlights(context.Background(), "BUD", "NRT", "2026-03-08", "2026-03-19")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if len(result.Quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(result.Quotes))
	}

	first := result.Quotes[0]
	if first.PriceEurCents != 68050 {
		t.Fatalf("expected 68050 EUR cents, got %d", first.PriceEurCents)
	}
	if first.Airline != "LOT, ANA" {
		t.Fatalf("airlines list should join, got %q", first.Airline)
	}
	if first.DepartureDate != "2026-03-08" {
		t.Fatalf("departure date should default to the searched date, got %q", first.DepartureDate)
	}
	if first.DurationMinutes != 900 {
		t.Fatalf("expected 900 minutes, got %d", first.DurationMinutes)
	}

	second := result.Quotes[1]
	if second.DepartureDate != "2026-03-09" {
		t.Fatalf("snake_case date should win over the searched date, got %q", second.DepartureDate)
	}
	if second.PriceEurCents != 120000 {
		// 120000 RSD at 100 RSD per EUR is 1200 EUR.
		t.Fatalf("expected 120000 EUR cents, got %d", second.PriceEurCents)
	}

	if input["currency"] != "EUR" {
		t.Fatalf("actor input should request EUR, got %v", input["currency"])
	}
}

func TestBookingSearchStays(t *testing.T) {
	var input map[string]any
	srv := apifyTestServer(t, []map[string]any{
		{
			"name":            "Asakusa River Loft",
			"url":             "https://www.booking.com/x",
			"price":           62.0,
			"currency":        "USD",
			"reviewScore":     8.7,
			"numberOfReviews": 214,
			"propertyType":    "Apartment",
		},
	}, &input)
	defer srv.Close()

	b := NewBooking(ApifyOptions{BaseURL: srv.URL, Token: "tok"}, testNormalizer(t), zerolog.Nop())

	neighborhood := trip.Neighborhood{Key: "asakusa", Label: "Asakusa / Taito Ward"}
	result := b.SearchStays(context.Background(), neighborhood, "2026-03-08", "2026-03-17")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if len(result.Quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(result.Quotes))
	}

	quote := result.Quotes[0]
	if quote.Platform != "booking" {
		t.Fatalf("unexpected platform %q", quote.Platform)
	}
	if quote.Neighborhood != "asakusa" {
		t.Fatalf("unexpected neighborhood %q", quote.Neighborhood)
	}
	if quote.NightlyUsdCents != 6200 {
		t.Fatalf("expected 6200 USD cents, got %d", quote.NightlyUsdCents)
	}
	if quote.NightlyEurCents != 3100 {
		t.Fatalf("expected 3100 EUR cents, got %d", quote.NightlyEurCents)
	}
	if quote.Rating != 8.7 {
		t.Fatalf("reviewScore should stand in for rating, got %f", quote.Rating)
	}
	if quote.ReviewCount != 214 {
		t.Fatalf("numberOfReviews should stand in for review count, got %d", quote.ReviewCount)
	}

	if input["search"] != "Tokyo Asakusa / Taito Ward" {
		t.Fatalf("unexpected search input %v", input["search"])
	}
}

func TestAirbnbSearchStays(t *testing.T) {
	var input map[string]any
	srv := apifyTestServer(t, []map[string]any{
		{
			"title": "Cozy Koenji Flat",
			"url":   "https://www.airbnb.com/x",
			"pricing": map[string]any{
				"rate":     map[string]any{"amount": 54.0},
				"currency": "USD",
			},
			"rating":       4.9,
			"reviewsCount": 88,
			"amenities":    []string{"Kitchen", "Wifi"},
		},
	}, &input)
	defer srv.Close()

	a := NewAirbnb(ApifyOptions{BaseURL: srv.URL, Token: "tok"}, testNormalizer(t), zerolog.Nop())

	neighborhood := trip.Neighborhood{Key: "koenji", Label: "Koenji"}
	result := a.SearchStays(context.Background(), neighborhood, "2026-03-08", "2026-03-17")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if len(result.Quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(result.Quotes))
	}

	quote := result.Quotes[0]
	if quote.Name != "Cozy Koenji Flat" {
		t.Fatalf("title should stand in for name, got %q", quote.Name)
	}
	if quote.NightlyUsdCents != 5400 {
		t.Fatalf("expected 5400 USD cents, got %d", quote.NightlyUsdCents)
	}
	if quote.PropertyType != "entire_home" {
		t.Fatalf("missing room type should default, got %q", quote.PropertyType)
	}
	if len(quote.Amenities) != 2 {
		t.Fatalf("amenities should carry through, got %v", quote.Amenities)
	}

	if input["locationQuery"] != "Koenji, Tokyo, Japan" {
		t.Fatalf("unexpected location query %v", input["locationQuery"])
	}
}

func TestApifyMissingToken(t *testing.T) {
	s := NewSkyscanner(ApifyOptions{}, testNormalizer(t), zerolog.Nop())
	if result := s.SearchFlights(context.Background(), "BUD", "NRT", "2026-03-08", ""); result.Success {
		t.Fatal("missing apify token must not succeed")
	}
}

func TestApifyActorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	b := NewBooking(ApifyOptions{BaseURL: srv.URL, Token: "tok"}, testNormalizer(t), zerolog.Nop())
	result := b.SearchStays(context.Background(), trip.Neighborhood{Key: "ueno", Label: "Ueno"}, "2026-03-08", "2026-03-17")
	if result.Success {
		t.Fatal("actor failures must surface as an unsuccessful result")
	}
	if result.Err == "" {
		t.Fatal("expected an error message")
	}
}
