package currency

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tokyosniper/internal/cache"
	"tokyosniper/internal/model"
)

func testConverter(baseURL string) *Converter {
	return NewConverter(ConverterOptions{BaseURL: baseURL, Timeout: time.Second}, cache.NewMemory(nil), zerolog.Nop())
}

func TestConvertDeterministic(t *testing.T) {
	rates := Rates{EUR: 1, USD: 1.08, RSD: 117.5, JPY: 163.0}

	first := ConvertWithRates(75000, model.CurrencyEUR, rates)
	second := ConvertWithRates(75000, model.CurrencyEUR, rates)
	if first != second {
		t.Fatalf("conversion must be deterministic: %+v vs %+v", first, second)
	}
	if first.EurCents != 75000 {
		t.Fatalf("EUR amount should pass through, got %d", first.EurCents)
	}
	if first.UsdCents != 81000 {
		t.Fatalf("expected 81000 USD cents, got %d", first.UsdCents)
	}
}

func TestConvertFromUSD(t *testing.T) {
	rates := Rates{EUR: 1, USD: 2, RSD: 100, JPY: 150}
	price := ConvertWithRates(10000, model.CurrencyUSD, rates)

	if price.EurCents != 5000 {
		t.Fatalf("expected 5000 EUR cents, got %d", price.EurCents)
	}
	if price.RsdCents != 500000 {
		t.Fatalf("expected 500000 RSD cents, got %d", price.RsdCents)
	}
	if price.JpyCents != 750000 {
		t.Fatalf("expected 750000 JPY cents, got %d", price.JpyCents)
	}
}

func TestConvertMissingJPYRate(t *testing.T) {
	rates := Rates{EUR: 1, USD: 1.08, RSD: 117.5}
	price := ConvertWithRates(5000, model.CurrencyUSD, rates)
	if price.JpyCents != 0 {
		t.Fatalf("missing JPY rate should yield 0, got %d", price.JpyCents)
	}
}

func TestRatesFetchAndCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rates": map[string]float64{"USD": 1.10, "JPY": 160.0},
		})
	}))
	defer srv.Close()

	conv := testConverter(srv.URL)
	ctx := context.Background()

	rates := conv.Rates(ctx)
	if rates.USD != 1.10 {
		t.Fatalf("expected fetched USD rate, got %f", rates.USD)
	}
	if rates.RSD != FallbackRates.RSD {
		t.Fatalf("RSD should come from the fallback table, got %f", rates.RSD)
	}

	conv.Rates(ctx)
	if calls != 1 {
		t.Fatalf("second lookup should hit the cache, upstream called %d times", calls)
	}
}

func TestRatesFallbackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	conv := testConverter(srv.URL)
	rates := conv.Rates(context.Background())
	if rates != FallbackRates {
		t.Fatalf("expected fallback rates, got %+v", rates)
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(75000, model.CurrencyEUR); got != "€750.00" {
		t.Fatalf("unexpected EUR format: %s", got)
	}
	if got := FormatPrice(163050, model.CurrencyJPY); got != "¥1631" {
		t.Fatalf("JPY should round to whole units: %s", got)
	}
}
