package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tokyosniper/internal/alerting"
	"tokyosniper/internal/model"
	"tokyosniper/internal/trip"
)

// SimulateAlert pushes a synthetic quote through the rule evaluator so the
// notification path can be verified without touching the database.
func (a *App) SimulateAlert(ctx context.Context, kind string, priceCents int64) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("telegram is not enabled; nothing to deliver")
	}

	evaluator := alerting.NewEvaluator(alerting.Options{
		Thresholds: a.thresholds(),
		Notifier:   notifier,
	}, a.Logger)

	now := time.Now().UTC()

	switch kind {
	case model.KindFlight:
		quote := model.FlightQuote{
			Origin:        "BUD",
			Destination:   "NRT",
			DepartureDate: now.AddDate(0, 1, 0).Format("2006-01-02"),
			ReturnDate:    now.AddDate(0, 1, 11).Format("2006-01-02"),
			Airline:       "Simulated Air",
			PriceEurCents: priceCents,
			PriceUsdCents: priceCents * 108 / 100,
			PriceRsdCents: priceCents * 117,
			Source:        "simulated",
			Stops:         1,
			CheckedAt:     now,
		}
		sent, alertErrs := evaluator.EvaluateFlights(ctx, []model.FlightQuote{quote})
		if len(alertErrs) > 0 {
			return errors.New(strings.Join(alertErrs, "; "))
		}
		if sent == 0 {
			return fmt.Errorf("no rule matched a %s round trip", formatEuros(priceCents))
		}
	case model.KindStay:
		quote := model.StayQuote{
			Name:            "Simulated Apartment",
			Neighborhood:    trip.Neighborhoods[0].Key,
			Platform:        "booking",
			PropertyType:    "entire_home",
			Rating:          8.8,
			ReviewCount:     120,
			Amenities:       []string{"Kitchen", "Wifi"},
			NightlyUsdCents: priceCents,
			NightlyEurCents: priceCents * 100 / 108,
			NightlyRsdCents: priceCents * 108,
			NightlyJpyCents: priceCents * 145,
			TotalUsdCents:   priceCents * 9,
			Source:          "simulated",
			CheckedAt:       now,
		}
		sent, alertErrs := evaluator.EvaluateStays(ctx, []model.StayQuote{quote})
		if len(alertErrs) > 0 {
			return errors.New(strings.Join(alertErrs, "; "))
		}
		if sent == 0 {
			return fmt.Errorf("no rule matched a $%d.%02d nightly stay", priceCents/100, priceCents%100)
		}
	default:
		return fmt.Errorf("unknown kind %q, want %s or %s", kind, model.KindFlight, model.KindStay)
	}

	a.Logger.Info().Str("kind", kind).Int64("price_cents", priceCents).Msg("simulated alert delivered")
	return nil
}

func formatEuros(cents int64) string {
	return fmt.Sprintf("€%d.%02d", cents/100, cents%100)
}
