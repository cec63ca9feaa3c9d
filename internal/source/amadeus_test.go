package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"tokyosniper/internal/cache"
)

func amadeusTestServer(t *testing.T, tokenCalls *int, offers []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/security/oauth2/token":
			*tokenCalls++
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-123",
				"expires_in":   1799,
			})
		case "/v2/shopping/flight-offers":
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": offers})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testAmadeusOffer(total string, segments int) map[string]any {
	segs := make([]map[string]any, 0, segments)
	for i := 0; i < segments; i++ {
		segs = append(segs, map[string]any{
			"carrierCode": "TK",
			"departure":   map[string]any{"iataCode": "BUD", "at": "2026-03-08T10:30:00"},
		})
	}
	return map[string]any{
		"price": map[string]any{"total": total, "currency": "EUR"},
		"itineraries": []map[string]any{
			{"duration": "PT14H25M", "segments": segs},
		},
	}
}

func TestAmadeusSearchFlights(t *testing.T) {
	tokenCalls := 0
	srv := amadeusTestServer(t, &tokenCalls, []map[string]any{
		testAmadeusOffer("750.00", 2),
	})
	defer srv.Close()

	a := NewAmadeus(AmadeusOptions{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
	}, cache.NewMemory(nil), testNormalizer(t), zerolog.Nop())

	result := a.SearchFlights(context.Background(), "BUD", "NRT", "2026-03-08", "2026-03-19")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if len(result.Quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(result.Quotes))
	}

	quote := result.Quotes[0]
	if quote.PriceEurCents != 75000 {
		t.Fatalf("expected 75000 EUR cents, got %d", quote.PriceEurCents)
	}
	if quote.Stops != 1 {
		t.Fatalf("two segments means one stop, got %d", quote.Stops)
	}
	if quote.DurationMinutes != 14*60+25 {
		t.Fatalf("expected 865 minutes, got %d", quote.DurationMinutes)
	}
	if quote.Airline != "Turkish Airlines" {
		t.Fatalf("carrier code should resolve to a name, got %q", quote.Airline)
	}
	if quote.DepartureDate != "2026-03-08" {
		t.Fatalf("departure date should come from the segment, got %q", quote.DepartureDate)
	}
	if quote.BookingURL == "" {
		t.Fatal("expected a booking deep link")
	}
}

func TestAmadeusTokenReuse(t *testing.T) {
	tokenCalls := 0
	srv := amadeusTestServer(t, &tokenCalls, nil)
	defer srv.Close()

	a := NewAmadeus(AmadeusOptions{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
	}, cache.NewMemory(nil), testNormalizer(t), zerolog.Nop())

	ctx := context.Background()
	a.SearchFlights(ctx, "BUD", "NRT", "2026-03-08", "2026-03-19")
	a.SearchFlights(ctx, "BUD", "HND", "2026-03-08", "2026-03-19")

	if tokenCalls != 1 {
		t.Fatalf("token should be cached across searches, fetched %d times", tokenCalls)
	}
}

func TestAmadeusAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewAmadeus(AmadeusOptions{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "wrong",
	}, cache.NewMemory(nil), testNormalizer(t), zerolog.Nop())

	result := a.SearchFlights(context.Background(), "BUD", "NRT", "2026-03-08", "")
	if result.Success {
		t.Fatal("auth failure must surface as an unsuccessful result")
	}
	if result.Err == "" {
		t.Fatal("expected an error message")
	}
}

func TestAmadeusMissingCredentials(t *testing.T) {
	a := NewAmadeus(AmadeusOptions{}, cache.NewMemory(nil), testNormalizer(t), zerolog.Nop())

	result := a.SearchFlights(context.Background(), "BUD", "NRT", "2026-03-08", "")
	if result.Success {
		t.Fatal("missing credentials must not succeed")
	}
}

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"PT14H25M", 865},
		{"PT2H", 120},
		{"PT45M", 45},
		{"", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		if got := parseISODuration(tc.in); got != tc.want {
			t.Fatalf("parseISODuration(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
