package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tokyosniper/internal/model"
	"tokyosniper/internal/source"
	"tokyosniper/internal/storage"
	"tokyosniper/internal/trip"
)

// Policy selects how multiple flight sources are consulted for one search
// combination.
type Policy string

const (
	// PolicyFallback tries sources in order and keeps the first one that
	// succeeds with at least one quote.
	PolicyFallback Policy = "fallback"
	// PolicyFanout queries every source and merges their quotes.
	PolicyFanout Policy = "fanout"
)

// Advisory lock keys guard against overlapping check runs across instances.
const (
	lockKeyFlights int64 = 224801
	lockKeyStays   int64 = 224802
)

// CheckResult summarises one ingestion run. Errors carries every per-source
// and per-record failure; a run with errors can still record quotes.
type CheckResult struct {
	Skipped       bool
	TotalChecked  int
	NewRecords    int
	Errors        []string
	CheapestCents *int64
}

// Options wires an Orchestrator.
type Options struct {
	FlightSources []source.FlightSource
	StaySources   []source.StaySource
	Flights       storage.FlightStore
	Stays         storage.StayStore
	Enumerator    trip.Enumerator
	Policy        Policy
	Locker        storage.AdvisoryLocker
	Now           func() time.Time
}

// Orchestrator runs the ingestion pipeline: enumerate the search space, query
// sources, normalize, dedup, persist.
type Orchestrator struct {
	flightSources []source.FlightSource
	staySources   []source.StaySource
	flights       storage.FlightStore
	stays         storage.StayStore
	enum          trip.Enumerator
	policy        Policy
	locker        storage.AdvisoryLocker
	logger        zerolog.Logger
	now           func() time.Time
}

// NewOrchestrator constructs the ingestion orchestrator.
func NewOrchestrator(opts Options, logger zerolog.Logger) *Orchestrator {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyFallback
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		flightSources: opts.FlightSources,
		staySources:   opts.StaySources,
		flights:       opts.Flights,
		stays:         opts.Stays,
		enum:          opts.Enumerator,
		policy:        policy,
		locker:        opts.Locker,
		logger:        logger.With().Str("component", "orchestrator").Logger(),
		now:           now,
	}
}

// CheckFlights runs one full flight sweep and returns the summary together
// with the quotes recorded by this run.
func (o *Orchestrator) CheckFlights(ctx context.Context) (CheckResult, []model.FlightQuote) {
	unlock, proceed := o.acquireLock(ctx, lockKeyFlights)
	if !proceed {
		o.logger.Debug().Msg("skip flight check, advisory lock held elsewhere")
		return CheckResult{Skipped: true}, nil
	}
	if unlock != nil {
		defer unlock()
	}

	checkedAt := o.now().UTC()
	var result CheckResult
	var collected []model.FlightQuote

	for _, route := range trip.Routes {
		for _, pair := range o.enum.TripPairs() {
			quotes, errs := o.queryFlightSources(ctx, route, pair)
			result.Errors = append(result.Errors, errs...)
			result.TotalChecked += len(quotes)
			collected = append(collected, quotes...)
		}
	}

	inserted := make([]model.FlightQuote, 0, len(collected))
	seen := make(map[string]struct{}, len(collected))
	for _, quote := range collected {
		key := flightKey(quote)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		quote.CheckedAt = checkedAt
		id, err := o.flights.InsertFlightQuote(ctx, quote)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("persist %s %s: %s", quote.Destination, quote.DepartureDate, err))
			continue
		}
		quote.ID = id
		inserted = append(inserted, quote)
		result.NewRecords++
		trackCheapest(&result, quote.PriceEurCents)
	}

	o.logger.Info().
		Int("checked", result.TotalChecked).
		Int("new", result.NewRecords).
		Int("errors", len(result.Errors)).
		Msg("flight sweep complete")
	return result, inserted
}

// CheckStays runs one full accommodation sweep. Stay platforms are
// complementary, so every source is queried regardless of policy.
func (o *Orchestrator) CheckStays(ctx context.Context) (CheckResult, []model.StayQuote) {
	unlock, proceed := o.acquireLock(ctx, lockKeyStays)
	if !proceed {
		o.logger.Debug().Msg("skip stay check, advisory lock held elsewhere")
		return CheckResult{Skipped: true}, nil
	}
	if unlock != nil {
		defer unlock()
	}

	checkedAt := o.now().UTC()
	var result CheckResult
	var collected []model.StayQuote

	for _, neighborhood := range trip.Neighborhoods {
		for _, window := range o.enum.StayWindows() {
			results := o.fanoutStays(ctx, neighborhood, window)
			for _, r := range results {
				if !r.Success {
					result.Errors = append(result.Errors,
						fmt.Sprintf("%s %s %s: %s", r.Source, neighborhood.Key, window.Label, r.Err))
					continue
				}
				result.TotalChecked += len(r.Quotes)
				collected = append(collected, r.Quotes...)
			}
		}
	}

	inserted := make([]model.StayQuote, 0, len(collected))
	seen := make(map[string]struct{}, len(collected))
	for _, quote := range collected {
		key := stayKey(quote)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		quote.CheckedAt = checkedAt
		quote.TotalUsdCents = quote.NightlyUsdCents * int64(o.enum.StayNights)

		accommodationID, err := o.stays.ResolveAccommodation(ctx, quote)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("persist %s/%s: %s", quote.Platform, quote.Name, err))
			continue
		}
		quote.AccommodationID = accommodationID

		id, err := o.stays.InsertStayQuote(ctx, accommodationID, quote)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("persist %s/%s: %s", quote.Platform, quote.Name, err))
			continue
		}
		quote.ID = id
		inserted = append(inserted, quote)
		result.NewRecords++
		trackCheapest(&result, quote.NightlyUsdCents)
	}

	o.logger.Info().
		Int("checked", result.TotalChecked).
		Int("new", result.NewRecords).
		Int("errors", len(result.Errors)).
		Msg("stay sweep complete")
	return result, inserted
}

func (o *Orchestrator) queryFlightSources(ctx context.Context, route trip.Route, pair trip.DatePair) ([]model.FlightQuote, []string) {
	if o.policy == PolicyFanout {
		return o.fanoutFlights(ctx, route, pair)
	}

	var errs []string
	for _, src := range o.flightSources {
		r := src.SearchFlights(ctx, route.Origin, route.Destination, pair.Departure, pair.Return)
		if !r.Success {
			errs = append(errs, fmt.Sprintf("%s %s %s: %s", r.Source, route.Label, pair.Label, r.Err))
			continue
		}
		if len(r.Quotes) == 0 {
			continue
		}
		return r.Quotes, errs
	}
	return nil, errs
}

func (o *Orchestrator) fanoutFlights(ctx context.Context, route trip.Route, pair trip.DatePair) ([]model.FlightQuote, []string) {
	results := make([]source.FlightResult, len(o.flightSources))
	var wg sync.WaitGroup
	for i, src := range o.flightSources {
		wg.Add(1)
		go func(i int, src source.FlightSource) {
			defer wg.Done()
			results[i] = src.SearchFlights(ctx, route.Origin, route.Destination, pair.Departure, pair.Return)
		}(i, src)
	}
	wg.Wait()

	// Consume in registration order so dedup stays reproducible.
	var quotes []model.FlightQuote
	var errs []string
	for _, r := range results {
		if !r.Success {
			errs = append(errs, fmt.Sprintf("%s %s %s: %s", r.Source, route.Label, pair.Label, r.Err))
			continue
		}
		quotes = append(quotes, r.Quotes...)
	}
	return quotes, errs
}

func (o *Orchestrator) fanoutStays(ctx context.Context, neighborhood trip.Neighborhood, window trip.StayWindow) []source.StayResult {
	results := make([]source.StayResult, len(o.staySources))
	var wg sync.WaitGroup
	for i, src := range o.staySources {
		wg.Add(1)
		go func(i int, src source.StaySource) {
			defer wg.Done()
			results[i] = src.SearchStays(ctx, neighborhood, window.CheckIn, window.CheckOut)
		}(i, src)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) acquireLock(ctx context.Context, key int64) (func(), bool) {
	if o.locker == nil {
		return nil, true
	}
	unlock, acquired, err := o.locker.TryAdvisoryLock(ctx, key)
	if err != nil {
		o.logger.Warn().Err(err).Msg("advisory lock unavailable, proceeding without it")
		return nil, true
	}
	if !acquired {
		return nil, false
	}
	return unlock, true
}

// flightKey is the dedup identity within one sweep: the same airline, date
// and exact price seen by two sources is one observation.
func flightKey(q model.FlightQuote) string {
	return fmt.Sprintf("%s|%s|%d|%d", q.Airline, q.DepartureDate, q.Stops, q.PriceEurCents)
}

// stayKey is the dedup identity within one sweep: one property per platform.
func stayKey(q model.StayQuote) string {
	return fmt.Sprintf("%s|%s|%s", q.Name, q.Platform, q.Neighborhood)
}

func trackCheapest(result *CheckResult, cents int64) {
	if result.CheapestCents == nil || cents < *result.CheapestCents {
		value := cents
		result.CheapestCents = &value
	}
}
