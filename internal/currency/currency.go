package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tokyosniper/internal/cache"
	"tokyosniper/internal/model"
)

const (
	ratesCacheKey = "currency:rates"
	ratesTTL      = 6 * time.Hour

	defaultBaseURL = "https://api.frankfurter.dev/v1"
)

// Rates maps each tracked currency to its value per EUR.
type Rates struct {
	EUR float64 `json:"EUR"`
	USD float64 `json:"USD"`
	RSD float64 `json:"RSD"`
	JPY float64 `json:"JPY"`
}

// FallbackRates are used whenever the upstream rate source is unreachable.
var FallbackRates = Rates{EUR: 1, USD: 1.08, RSD: 117.5, JPY: 163.0}

// ConverterOptions parameterise the rate-snapshot converter.
type ConverterOptions struct {
	BaseURL string
	Timeout time.Duration
}

// Converter resolves exchange-rate snapshots and converts raw amounts into
// the canonical four-currency representation.
type Converter struct {
	cache   cache.Cache
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewConverter constructs a Converter over the given cache collaborator.
func NewConverter(opts ConverterOptions, c cache.Cache, logger zerolog.Logger) *Converter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Converter{
		cache:   c,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "currency").Logger(),
	}
}

// Rates returns the current snapshot: cached when fresh, fetched otherwise,
// falling back to the hardcoded table when the source is unreachable.
func (c *Converter) Rates(ctx context.Context) Rates {
	if cached, ok := c.cache.Get(ctx, ratesCacheKey); ok {
		var rates Rates
		if err := json.Unmarshal([]byte(cached), &rates); err == nil && rates.EUR > 0 {
			return rates
		}
	}

	rates, err := c.fetchRates(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("rate fetch failed, using fallback table")
		return FallbackRates
	}

	if payload, err := json.Marshal(rates); err == nil {
		c.cache.Set(ctx, ratesCacheKey, string(payload), ratesTTL)
	}
	return rates
}

type ratesResponse struct {
	Rates struct {
		USD float64 `json:"USD"`
		JPY float64 `json:"JPY"`
	} `json:"rates"`
}

func (c *Converter) fetchRates(ctx context.Context) (Rates, error) {
	url := c.baseURL + "/latest?base=EUR&symbols=USD,JPY"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Rates{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Rates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Rates{}, fmt.Errorf("rate source status %d", resp.StatusCode)
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Rates{}, err
	}
	if payload.Rates.USD <= 0 {
		return Rates{}, fmt.Errorf("rate source returned no USD rate")
	}

	// The upstream API does not quote RSD; the fallback ratio stands in.
	return Rates{
		EUR: 1,
		USD: payload.Rates.USD,
		RSD: FallbackRates.RSD,
		JPY: payload.Rates.JPY,
	}, nil
}

// Convert turns amountCents denominated in from into all four currencies.
// The EUR amount is derived first; every other denomination is computed from
// it and rounded independently. A missing JPY rate yields zero JPY cents.
func (c *Converter) Convert(ctx context.Context, amountCents int64, from model.Currency) model.MultiPrice {
	rates := c.Rates(ctx)
	return ConvertWithRates(amountCents, from, rates)
}

// ConvertWithRates performs the conversion against a fixed snapshot. It is
// deterministic for identical inputs.
func ConvertWithRates(amountCents int64, from model.Currency, rates Rates) model.MultiPrice {
	fromRate := rateFor(from, rates)
	if fromRate <= 0 {
		fromRate = 1
	}

	amount := decimal.NewFromInt(amountCents)
	eur := amount.DivRound(decimal.NewFromFloat(fromRate), 8).Round(0)
	eurCents := eur.IntPart()

	price := model.MultiPrice{
		EurCents: eurCents,
		UsdCents: eur.Mul(decimal.NewFromFloat(rates.USD)).Round(0).IntPart(),
		RsdCents: eur.Mul(decimal.NewFromFloat(rates.RSD)).Round(0).IntPart(),
	}
	if rates.JPY > 0 {
		price.JpyCents = eur.Mul(decimal.NewFromFloat(rates.JPY)).Round(0).IntPart()
	}
	return price
}

func rateFor(cur model.Currency, rates Rates) float64 {
	switch cur {
	case model.CurrencyEUR:
		return rates.EUR
	case model.CurrencyUSD:
		return rates.USD
	case model.CurrencyRSD:
		return rates.RSD
	case model.CurrencyJPY:
		return rates.JPY
	}
	// Unknown source currencies are treated as EUR.
	return rates.EUR
}

// FormatPrice renders minor units for humans; JPY is shown without decimals.
func FormatPrice(cents int64, cur model.Currency) string {
	switch cur {
	case model.CurrencyEUR:
		return fmt.Sprintf("€%.2f", float64(cents)/100)
	case model.CurrencyUSD:
		return fmt.Sprintf("$%.2f", float64(cents)/100)
	case model.CurrencyRSD:
		return fmt.Sprintf("RSD %.2f", float64(cents)/100)
	case model.CurrencyJPY:
		return fmt.Sprintf("¥%d", (cents+50)/100)
	}
	return fmt.Sprintf("%.2f %s", float64(cents)/100, cur)
}
