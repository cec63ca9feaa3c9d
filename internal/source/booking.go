package source

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"tokyosniper/internal/model"
	"tokyosniper/internal/trip"
)

// Booking scrapes Booking.com through its Apify actor.
type Booking struct {
	client *apifyClient
	norm   *Normalizer
	logger zerolog.Logger
}

// NewBooking constructs the adapter.
func NewBooking(opts ApifyOptions, norm *Normalizer, logger zerolog.Logger) *Booking {
	return &Booking{
		client: newApifyClient(opts),
		norm:   norm,
		logger: logger.With().Str("component", "source_booking").Logger(),
	}
}

func (b *Booking) ID() string { return "booking" }

type bookingItem struct {
	Name            string  `json:"name"`
	URL             string  `json:"url"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	Rating          float64 `json:"rating"`
	ReviewScore     float64 `json:"reviewScore"`
	ReviewCount     int     `json:"reviewCount"`
	NumberOfReviews int     `json:"numberOfReviews"`
	Type            string  `json:"type"`
	PropertyType    string  `json:"propertyType"`
}

func (b *Booking) SearchStays(ctx context.Context, neighborhood trip.Neighborhood, checkIn, checkOut string) StayResult {
	items, err := b.client.runActor(ctx, actorBooking, map[string]any{
		"search":       "Tokyo " + neighborhood.Label,
		"checkIn":      checkIn,
		"checkOut":     checkOut,
		"currency":     "USD",
		"language":     "en-us",
		"adults":       1,
		"rooms":        1,
		"minScore":     "8",
		"propertyType": "Apartments",
		"sortBy":       "price",
		"maxPages":     20,
		"useFilters":   true,
	})
	if err != nil {
		return stayFailure(b.ID(), err.Error())
	}

	quotes := make([]model.StayQuote, 0, len(items))
	for _, raw := range items {
		var item bookingItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}

		code := item.Currency
		if code == "" {
			code = "USD"
		}
		price, ok := b.norm.Price(ctx, item.Price, code)
		if !ok {
			continue
		}

		name := item.Name
		if name == "" {
			name = "Unknown"
		}
		rating := item.Rating
		if rating == 0 {
			rating = item.ReviewScore
		}
		reviews := item.ReviewCount
		if reviews == 0 {
			reviews = item.NumberOfReviews
		}
		propertyType := item.PropertyType
		if propertyType == "" {
			propertyType = item.Type
		}

		quotes = append(quotes, model.StayQuote{
			Name:            name,
			Neighborhood:    neighborhood.Key,
			Platform:        "booking",
			URL:             item.URL,
			PropertyType:    propertyType,
			Rating:          rating,
			ReviewCount:     reviews,
			NightlyEurCents: price.EurCents,
			NightlyUsdCents: price.UsdCents,
			NightlyRsdCents: price.RsdCents,
			NightlyJpyCents: price.JpyCents,
			CheckIn:         checkIn,
			CheckOut:        checkOut,
			Source:          b.ID(),
			RawData:         raw,
		})
	}

	return StayResult{Success: true, Quotes: quotes, Source: b.ID()}
}

var _ StaySource = (*Booking)(nil)
