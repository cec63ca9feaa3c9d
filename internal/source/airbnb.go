package source

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"tokyosniper/internal/model"
	"tokyosniper/internal/trip"
)

// Airbnb scrapes Airbnb through its Apify actor.
type Airbnb struct {
	client *apifyClient
	norm   *Normalizer
	logger zerolog.Logger
}

// NewAirbnb constructs the adapter.
func NewAirbnb(opts ApifyOptions, norm *Normalizer, logger zerolog.Logger) *Airbnb {
	return &Airbnb{
		client: newApifyClient(opts),
		norm:   norm,
		logger: logger.With().Str("component", "source_airbnb").Logger(),
	}
}

func (a *Airbnb) ID() string { return "airbnb" }

type airbnbItem struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Pricing struct {
		Rate struct {
			Amount float64 `json:"amount"`
		} `json:"rate"`
		Currency string `json:"currency"`
	} `json:"pricing"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	Rating       float64  `json:"rating"`
	ReviewsCount int      `json:"reviewsCount"`
	RoomType     string   `json:"roomType"`
	Amenities    []string `json:"amenities"`
}

func (a *Airbnb) SearchStays(ctx context.Context, neighborhood trip.Neighborhood, checkIn, checkOut string) StayResult {
	items, err := a.client.runActor(ctx, actorAirbnb, map[string]any{
		"locationQuery": neighborhood.Label + ", Tokyo, Japan",
		"checkIn":       checkIn,
		"checkOut":      checkOut,
		"currency":      "USD",
		"maxListings":   20,
	})
	if err != nil {
		return stayFailure(a.ID(), err.Error())
	}

	quotes := make([]model.StayQuote, 0, len(items))
	for _, raw := range items {
		var item airbnbItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}

		amount := item.Pricing.Rate.Amount
		if amount == 0 {
			amount = item.Price
		}
		code := firstNonEmpty(item.Pricing.Currency, item.Currency, "USD")
		price, ok := a.norm.Price(ctx, amount, code)
		if !ok {
			continue
		}

		name := firstNonEmpty(item.Name, item.Title, "Unknown")
		propertyType := item.RoomType
		if propertyType == "" {
			propertyType = "entire_home"
		}

		quotes = append(quotes, model.StayQuote{
			Name:            name,
			Neighborhood:    neighborhood.Key,
			Platform:        "airbnb",
			URL:             item.URL,
			PropertyType:    propertyType,
			Rating:          item.Rating,
			ReviewCount:     item.ReviewsCount,
			Amenities:       item.Amenities,
			NightlyEurCents: price.EurCents,
			NightlyUsdCents: price.UsdCents,
			NightlyRsdCents: price.RsdCents,
			NightlyJpyCents: price.JpyCents,
			CheckIn:         checkIn,
			CheckOut:        checkOut,
			Source:          a.ID(),
			RawData:         raw,
		})
	}

	return StayResult{Success: true, Quotes: quotes, Source: a.ID()}
}

var _ StaySource = (*Airbnb)(nil)
