package alerting

import (
	"fmt"
	"strings"

	"tokyosniper/internal/currency"
	"tokyosniper/internal/model"
	"tokyosniper/internal/trip"
)

// Deal is one matched rule hit bound for the consolidated notification and
// the alert history. ConfigID is nil for built-in rules.
type Deal struct {
	Kind       string
	Message    string
	PriceCents int64
	Currency   model.Currency
	ConfigID   *int64
}

func formatFlightDeal(q model.FlightQuote, reason string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✈️ <b>%s</b> %s → %s\n",
		currency.FormatPrice(q.PriceEurCents, model.CurrencyEUR), q.Origin, q.Destination))
	b.WriteString(fmt.Sprintf("   %s", q.DepartureDate))
	if q.ReturnDate != "" {
		b.WriteString(fmt.Sprintf(" – %s", q.ReturnDate))
	}
	if q.Airline != "" {
		b.WriteString(fmt.Sprintf(", %s", q.Airline))
	}
	if q.Stops == 0 {
		b.WriteString(", nonstop")
	} else {
		b.WriteString(fmt.Sprintf(", %d stop(s)", q.Stops))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("   %s / %s\n",
		currency.FormatPrice(q.PriceUsdCents, model.CurrencyUSD),
		currency.FormatPrice(q.PriceRsdCents, model.CurrencyRSD)))
	if q.BookingURL != "" {
		b.WriteString(fmt.Sprintf("   <a href=\"%s\">book</a>\n", q.BookingURL))
	}
	b.WriteString(fmt.Sprintf("   <i>%s</i>", reason))
	return b.String()
}

func formatStayDeal(q model.StayQuote, reason string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏠 <b>%s</b>/night, %s (%s)\n",
		currency.FormatPrice(q.NightlyUsdCents, model.CurrencyUSD),
		q.Name, trip.NeighborhoodLabel(q.Neighborhood)))
	b.WriteString(fmt.Sprintf("   %s", q.Platform))
	if q.Rating > 0 {
		b.WriteString(fmt.Sprintf(", rated %.1f", q.Rating))
	}
	if q.NightlyJpyCents > 0 {
		b.WriteString(fmt.Sprintf(", %s/night",
			currency.FormatPrice(q.NightlyJpyCents, model.CurrencyJPY)))
	}
	b.WriteString("\n")
	if q.URL != "" {
		b.WriteString(fmt.Sprintf("   <a href=\"%s\">view</a>\n", q.URL))
	}
	b.WriteString(fmt.Sprintf("   <i>%s</i>", reason))
	return b.String()
}

// renderNotification folds every deal of one evaluation into a single
// message.
func renderNotification(kind string, deals []Deal) string {
	var b strings.Builder
	switch kind {
	case model.KindFlight:
		b.WriteString(fmt.Sprintf("🔔 <b>Tokyo flight deals</b> (%d)\n\n", len(deals)))
	default:
		b.WriteString(fmt.Sprintf("🔔 <b>Tokyo stay deals</b> (%d)\n\n", len(deals)))
	}
	for i, deal := range deals {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(deal.Message)
	}
	return b.String()
}

// renderDigest builds the daily summary message.
func renderDigest(flight *model.FlightQuote, stays []model.StayQuote) string {
	var b strings.Builder
	b.WriteString("📋 <b>Daily Tokyo digest</b>\n\n")

	if flight != nil {
		b.WriteString("Cheapest flight on record:\n")
		b.WriteString(formatFlightDeal(*flight, "all-time low"))
		b.WriteString("\n\n")
	} else {
		b.WriteString("No flight quotes recorded yet.\n\n")
	}

	if len(stays) > 0 {
		b.WriteString("Cheapest stays per property:\n")
		for _, stay := range stays {
			b.WriteString(fmt.Sprintf("• %s, %s (%s): %s/night\n",
				stay.Name, trip.NeighborhoodLabel(stay.Neighborhood), stay.Platform,
				currency.FormatPrice(stay.NightlyUsdCents, model.CurrencyUSD)))
		}
	} else {
		b.WriteString("No stay quotes recorded yet.\n")
	}
	return b.String()
}
