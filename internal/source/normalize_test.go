package source

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tokyosniper/internal/cache"
	"tokyosniper/internal/currency"
)

// testNormalizer seeds the rate cache so no network fetch happens. The rates
// are chosen for easy mental arithmetic: 1 EUR = 2 USD = 100 RSD = 150 JPY.
func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	mem := cache.NewMemory(nil)
	mem.Set(context.Background(), "currency:rates", `{"EUR":1,"USD":2,"RSD":100,"JPY":150}`, time.Hour)
	conv := currency.NewConverter(currency.ConverterOptions{BaseURL: "http://127.0.0.1:0"}, mem, zerolog.Nop())
	return NewNormalizer(conv)
}

func TestPriceRejectsUnusableAmounts(t *testing.T) {
	norm := testNormalizer(t)
	ctx := context.Background()

	for _, amount := range []float64{0, -12.5, math.NaN(), math.Inf(1)} {
		if _, ok := norm.Price(ctx, amount, "EUR"); ok {
			t.Fatalf("amount %f should not normalize", amount)
		}
	}
}

func TestPriceConvertsAndRounds(t *testing.T) {
	norm := testNormalizer(t)

	price, ok := norm.Price(context.Background(), 19.999, "EUR")
	if !ok {
		t.Fatal("expected a usable price")
	}
	if price.EurCents != 2000 {
		t.Fatalf("expected 2000 EUR cents, got %d", price.EurCents)
	}
	if price.UsdCents != 4000 {
		t.Fatalf("expected 4000 USD cents, got %d", price.UsdCents)
	}
}

func TestPriceUnknownCurrencyFallsBackToEUR(t *testing.T) {
	norm := testNormalizer(t)

	price, ok := norm.Price(context.Background(), 100, "gbp")
	if !ok {
		t.Fatal("expected a usable price")
	}
	if price.EurCents != 10000 {
		t.Fatalf("unknown currency should be read as EUR, got %d EUR cents", price.EurCents)
	}
}

func TestSkyscannerURL(t *testing.T) {
	got := SkyscannerURL("BUD", "NRT", "2026-03-08", "2026-03-19")
	want := "https://www.skyscanner.net/transport/flights/bud/nrt/260308/260319/"
	if got != want {
		t.Fatalf("round trip URL mismatch:\n got %s\nwant %s", got, want)
	}

	got = SkyscannerURL("BUD", "HND", "2026-04-01", "")
	want = "https://www.skyscanner.net/transport/flights/bud/hnd/260401/"
	if got != want {
		t.Fatalf("one-way URL mismatch:\n got %s\nwant %s", got, want)
	}
}
