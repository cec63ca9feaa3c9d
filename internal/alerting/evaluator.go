package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tokyosniper/internal/currency"
	"tokyosniper/internal/model"
	"tokyosniper/internal/storage"
)

// Thresholds hold the built-in rule limits, integer minor units.
type Thresholds struct {
	FlightInstantEurCents int64
	FlightDropPercent     float64
	StayInstantUsdCents   int64
	StayGoodDealUsdCents  int64
}

// DefaultThresholds returns the built-in rule limits: €800 instant flight,
// 10% drop, $45 instant nightly, $60 quality nightly.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FlightInstantEurCents: 80000,
		FlightDropPercent:     10,
		StayInstantUsdCents:   4500,
		StayGoodDealUsdCents:  6000,
	}
}

// Options wires an Evaluator.
type Options struct {
	Thresholds Thresholds
	Flights    storage.FlightStore
	Stays      storage.StayStore
	Alerts     storage.AlertStore
	Notifier   Notifier
	Now        func() time.Time
}

// Evaluator matches freshly recorded quotes against built-in and custom
// rules, delivers one consolidated notification per evaluation, and records
// each delivered deal in the history.
type Evaluator struct {
	thresholds Thresholds
	flights    storage.FlightStore
	stays      storage.StayStore
	alerts     storage.AlertStore
	notifier   Notifier
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEvaluator constructs the rule evaluator.
func NewEvaluator(opts Options, logger zerolog.Logger) *Evaluator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		thresholds: opts.Thresholds,
		flights:    opts.Flights,
		stays:      opts.Stays,
		alerts:     opts.Alerts,
		notifier:   opts.Notifier,
		logger:     logger.With().Str("component", "evaluator").Logger(),
		now:        now,
	}
}

// EvaluateFlights matches one batch of recorded quotes. It returns the number
// of notifications actually delivered (0 or 1) and the failures encountered
// along the way.
func (e *Evaluator) EvaluateFlights(ctx context.Context, quotes []model.FlightQuote) (int, []string) {
	if len(quotes) == 0 {
		return 0, nil
	}

	var (
		deals []Deal
		errs  []string
	)
	seen := make(map[string]struct{})
	// One observation yields at most one deal, whichever rule claims it
	// first. Quotes sharing destination, date and price count as the same
	// observation no matter which source or rule surfaced them.
	add := func(q model.FlightQuote, deal Deal) {
		key := fmt.Sprintf("%s|%s|%d", q.Destination, q.DepartureDate, q.PriceEurCents)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		deals = append(deals, deal)
	}

	for _, q := range quotes {
		// Round trips only: a cheap one-way leg is not a bookable deal.
		if q.ReturnDate != "" && q.PriceEurCents < e.thresholds.FlightInstantEurCents {
			reason := fmt.Sprintf("below the %s instant threshold",
				currency.FormatPrice(e.thresholds.FlightInstantEurCents, model.CurrencyEUR))
			add(q, Deal{
				Kind:       model.KindFlight,
				Message:    formatFlightDeal(q, reason),
				PriceCents: q.PriceEurCents,
				Currency:   model.CurrencyEUR,
			})
			continue
		}

		if e.flights == nil {
			continue
		}
		lowest, ok, err := e.flights.LowestPriceBefore(ctx, q.Destination, q.DepartureDate, q.CheckedAt)
		if err != nil {
			e.logger.Warn().Err(err).Msg("price history lookup failed")
			errs = append(errs, fmt.Sprintf("price history lookup for %s %s: %s", q.Destination, q.DepartureDate, err))
			continue
		}
		if !ok || lowest <= 0 || q.PriceEurCents >= lowest {
			continue
		}
		prior := decimal.NewFromInt(lowest)
		drop := prior.Sub(decimal.NewFromInt(q.PriceEurCents)).Div(prior).Mul(decimal.NewFromInt(100))
		if drop.GreaterThanOrEqual(decimal.NewFromFloat(e.thresholds.FlightDropPercent)) {
			reason := fmt.Sprintf("%s%% below the previous low of %s",
				drop.StringFixed(1), currency.FormatPrice(lowest, model.CurrencyEUR))
			add(q, Deal{
				Kind:       model.KindFlight,
				Message:    formatFlightDeal(q, reason),
				PriceCents: q.PriceEurCents,
				Currency:   model.CurrencyEUR,
			})
		}
	}

	configs, err := e.enabledConfigs(ctx, model.KindFlight)
	if err != nil {
		e.logger.Warn().Err(err).Msg("custom rule lookup failed")
		errs = append(errs, fmt.Sprintf("custom rule lookup: %s", err))
	}
	for _, cfg := range configs {
		for _, q := range quotes {
			cents, cur := flightPriceIn(q, cfg.Currency)
			if cents <= 0 || cents >= cfg.ThresholdCents {
				continue
			}
			configID := cfg.ID
			add(q, Deal{
				Kind:       model.KindFlight,
				Message:    formatFlightDeal(q, fmt.Sprintf("matches rule %q", cfg.Label)),
				PriceCents: cents,
				Currency:   cur,
				ConfigID:   &configID,
			})
		}
	}

	sent, deliverErrs := e.deliver(ctx, model.KindFlight, deals)
	return sent, append(errs, deliverErrs...)
}

// EvaluateStays matches one batch of recorded stay quotes.
func (e *Evaluator) EvaluateStays(ctx context.Context, quotes []model.StayQuote) (int, []string) {
	if len(quotes) == 0 {
		return 0, nil
	}

	var (
		deals []Deal
		errs  []string
	)
	seen := make(map[string]struct{})
	// A property is one deal per evaluation regardless of how many rules or
	// platforms flag it.
	add := func(q model.StayQuote, deal Deal) {
		key := q.Name + "|" + q.Platform
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		deals = append(deals, deal)
	}

	for _, q := range quotes {
		if q.NightlyUsdCents < e.thresholds.StayInstantUsdCents {
			reason := fmt.Sprintf("below the %s/night instant threshold",
				currency.FormatPrice(e.thresholds.StayInstantUsdCents, model.CurrencyUSD))
			add(q, Deal{
				Kind:       model.KindStay,
				Message:    formatStayDeal(q, reason),
				PriceCents: q.NightlyUsdCents,
				Currency:   model.CurrencyUSD,
			})
			continue
		}

		if q.NightlyUsdCents < e.thresholds.StayGoodDealUsdCents &&
			q.Rating >= 8 &&
			hasAmenity(q.Amenities, "kitchen") &&
			hasAmenity(q.Amenities, "wifi") {
			reason := fmt.Sprintf("well-rated with kitchen and wifi under %s/night",
				currency.FormatPrice(e.thresholds.StayGoodDealUsdCents, model.CurrencyUSD))
			add(q, Deal{
				Kind:       model.KindStay,
				Message:    formatStayDeal(q, reason),
				PriceCents: q.NightlyUsdCents,
				Currency:   model.CurrencyUSD,
			})
		}
	}

	configs, err := e.enabledConfigs(ctx, model.KindStay)
	if err != nil {
		e.logger.Warn().Err(err).Msg("custom rule lookup failed")
		errs = append(errs, fmt.Sprintf("custom rule lookup: %s", err))
	}
	for _, cfg := range configs {
		for _, q := range quotes {
			cents := stayPriceIn(q, cfg.Currency)
			if cents <= 0 || cents >= cfg.ThresholdCents {
				continue
			}
			configID := cfg.ID
			add(q, Deal{
				Kind:       model.KindStay,
				Message:    formatStayDeal(q, fmt.Sprintf("matches rule %q", cfg.Label)),
				PriceCents: cents,
				Currency:   cfg.Currency,
				ConfigID:   &configID,
			})
		}
	}

	sent, deliverErrs := e.deliver(ctx, model.KindStay, deals)
	return sent, append(errs, deliverErrs...)
}

// SendDigest delivers the daily summary regardless of rule matches.
func (e *Evaluator) SendDigest(ctx context.Context) error {
	var cheapest *model.FlightQuote
	if e.flights != nil {
		if flight, ok, err := e.flights.CheapestFlight(ctx, ""); err != nil {
			e.logger.Warn().Err(err).Msg("cheapest flight lookup failed")
		} else if ok {
			cheapest = &flight
		}
	}

	var stays []model.StayQuote
	if e.stays != nil {
		var err error
		stays, err = e.stays.CheapestStays(ctx, 5)
		if err != nil {
			e.logger.Warn().Err(err).Msg("cheapest stays lookup failed")
		}
	}

	return e.notifier.Send(ctx, renderDigest(cheapest, stays))
}

// deliver sends one consolidated message and records each deal on success.
// A transport failure leaves the history untouched and is reported back to
// the caller.
func (e *Evaluator) deliver(ctx context.Context, kind string, deals []Deal) (int, []string) {
	if len(deals) == 0 {
		return 0, nil
	}
	if e.notifier == nil {
		return 0, nil
	}

	if err := e.notifier.Send(ctx, renderNotification(kind, deals)); err != nil {
		e.logger.Error().Err(err).Int("deals", len(deals)).Msg("notification delivery failed")
		return 0, []string{fmt.Sprintf("send consolidated %s alert: %s", kind, err)}
	}

	var errs []string
	sentAt := e.now().UTC()
	if e.alerts == nil {
		return 1, nil
	}
	for _, deal := range deals {
		entry := model.AlertHistoryEntry{
			ConfigID:   deal.ConfigID,
			Kind:       deal.Kind,
			Message:    deal.Message,
			PriceCents: deal.PriceCents,
			Currency:   deal.Currency,
			SentAt:     sentAt,
		}
		if err := e.alerts.InsertHistory(ctx, entry); err != nil {
			e.logger.Error().Err(err).Msg("failed to record alert history")
			errs = append(errs, fmt.Sprintf("record alert history: %s", err))
		}
	}

	e.logger.Info().Str("kind", kind).Int("deals", len(deals)).Msg("alert delivered")
	return 1, errs
}

func (e *Evaluator) enabledConfigs(ctx context.Context, kind string) ([]model.AlertConfig, error) {
	if e.alerts == nil {
		return nil, nil
	}
	return e.alerts.EnabledConfigs(ctx, kind)
}

// flightPriceIn resolves a quote's price in the rule's currency. Flights do
// not track JPY, so JPY rules compare the EUR amount.
func flightPriceIn(q model.FlightQuote, cur model.Currency) (int64, model.Currency) {
	switch cur {
	case model.CurrencyUSD:
		return q.PriceUsdCents, cur
	case model.CurrencyRSD:
		return q.PriceRsdCents, cur
	}
	return q.PriceEurCents, model.CurrencyEUR
}

func stayPriceIn(q model.StayQuote, cur model.Currency) int64 {
	switch cur {
	case model.CurrencyEUR:
		return q.NightlyEurCents
	case model.CurrencyRSD:
		return q.NightlyRsdCents
	case model.CurrencyJPY:
		return q.NightlyJpyCents
	}
	return q.NightlyUsdCents
}

func hasAmenity(amenities []string, needle string) bool {
	for _, a := range amenities {
		if strings.Contains(strings.ToLower(a), needle) {
			return true
		}
	}
	return false
}
