package source

import (
	"context"
	"fmt"
	"math"
	"strings"

	"tokyosniper/internal/currency"
	"tokyosniper/internal/model"
)

// Normalizer converts raw source-specific amounts into the canonical
// four-currency representation.
type Normalizer struct {
	conv *currency.Converter
}

// NewNormalizer wraps a converter.
func NewNormalizer(conv *currency.Converter) *Normalizer {
	return &Normalizer{conv: conv}
}

// Price normalizes a raw major-unit amount. Non-positive or non-finite
// amounts yield no result: the source extracted an item without a usable
// price, which is not an error. Unknown currency codes are treated as EUR.
func (n *Normalizer) Price(ctx context.Context, amount float64, code string) (model.MultiPrice, bool) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.MultiPrice{}, false
	}

	cur, ok := model.ParseCurrency(strings.ToUpper(strings.TrimSpace(code)))
	if !ok {
		cur = model.CurrencyEUR
	}

	cents := int64(math.Round(amount * 100))
	if cents <= 0 {
		return model.MultiPrice{}, false
	}

	return n.conv.Convert(ctx, cents, cur), true
}

// SkyscannerURL builds a Skyscanner deep link for a route and date pair.
// Dates are encoded as YYMMDD path segments.
func SkyscannerURL(origin, destination, departureDate, returnDate string) string {
	compact := func(day string) string {
		day = strings.ReplaceAll(day, "-", "")
		if len(day) > 2 {
			return day[2:]
		}
		return day
	}

	base := fmt.Sprintf("https://www.skyscanner.net/transport/flights/%s/%s/%s",
		strings.ToLower(origin), strings.ToLower(destination), compact(departureDate))
	if returnDate != "" {
		return base + "/" + compact(returnDate) + "/"
	}
	return base + "/"
}
