package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tokyosniper/internal/currency"
	"tokyosniper/internal/model"
	"tokyosniper/internal/trip"
)

// Show prints recent quotes of one kind.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show quotes")
	}
	defer closeStore()

	switch opts.Kind {
	case model.KindStay:
		return a.showStays(ctx, store, opts.Limit)
	default:
		return a.showFlights(ctx, store, opts.Limit)
	}
}

func (a *App) showFlights(ctx context.Context, store flightLister, limit int) error {
	quotes, err := store.RecentFlightQuotes(ctx, limit)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		fmt.Fprintln(os.Stdout, "no flight quotes found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Checked (UTC)\tRoute\tDates\tAirline\tStops\tEUR\tUSD\tSource")

	for _, q := range quotes {
		dates := q.DepartureDate
		if q.ReturnDate != "" {
			dates += " – " + q.ReturnDate
		}
		fmt.Fprintf(
			writer,
			"%s\t%s→%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			q.CheckedAt.UTC().Format(time.RFC3339),
			q.Origin, q.Destination,
			dates,
			sanitizeInline(q.Airline),
			q.Stops,
			currency.FormatPrice(q.PriceEurCents, model.CurrencyEUR),
			currency.FormatPrice(q.PriceUsdCents, model.CurrencyUSD),
			q.Source,
		)
	}

	writer.Flush()
	return nil
}

func (a *App) showStays(ctx context.Context, store stayLister, limit int) error {
	quotes, err := store.RecentStayQuotes(ctx, limit)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		fmt.Fprintln(os.Stdout, "no stay quotes found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Checked (UTC)\tName\tArea\tPlatform\tRating\tUSD/night\tJPY/night")

	for _, q := range quotes {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%.1f\t%s\t%s\n",
			q.CheckedAt.UTC().Format(time.RFC3339),
			sanitizeInline(q.Name),
			trip.NeighborhoodLabel(q.Neighborhood),
			q.Platform,
			q.Rating,
			currency.FormatPrice(q.NightlyUsdCents, model.CurrencyUSD),
			currency.FormatPrice(q.NightlyJpyCents, model.CurrencyJPY),
		)
	}

	writer.Flush()
	return nil
}

type flightLister interface {
	RecentFlightQuotes(ctx context.Context, limit int) ([]model.FlightQuote, error)
}

type stayLister interface {
	RecentStayQuotes(ctx context.Context, limit int) ([]model.StayQuote, error)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
