package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tokyosniper/internal/model"
)

// Export writes historical flight quotes to CSV.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" {
		return errors.New("--csv is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-90 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	quotes, err := store.FlightQuotesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		a.Logger.Info().Msg("no flight quotes found for export window")
		return nil
	}

	downsampled := downsampleQuotes(quotes, opts.MaxPoints)
	a.Logger.Info().Int("total", len(quotes)).Int("exported", len(downsampled)).Msg("exporting flight quotes")

	return writeQuotesCSV(opts.CSVPath, downsampled)
}

func downsampleQuotes(quotes []model.FlightQuote, max int) []model.FlightQuote {
	if max <= 0 || len(quotes) <= max {
		return quotes
	}

	result := make([]model.FlightQuote, 0, max)
	step := float64(len(quotes)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(quotes) {
			idx = len(quotes) - 1
		}
		result = append(result, quotes[idx])
	}
	return result
}

func writeQuotesCSV(path string, quotes []model.FlightQuote) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"checked_at", "origin", "destination", "departure_date", "return_date", "airline", "stops", "price_eur", "price_usd", "price_rsd", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, q := range quotes {
		record := []string{
			q.CheckedAt.UTC().Format(time.RFC3339),
			q.Origin,
			q.Destination,
			q.DepartureDate,
			q.ReturnDate,
			q.Airline,
			strconv.Itoa(q.Stops),
			centsToUnits(q.PriceEurCents),
			centsToUnits(q.PriceUsdCents),
			centsToUnits(q.PriceRsdCents),
			q.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func centsToUnits(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
