package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tokyosniper/internal/alerting"
	"tokyosniper/internal/cache"
	"tokyosniper/internal/config"
	"tokyosniper/internal/currency"
	"tokyosniper/internal/scheduler"
	"tokyosniper/internal/server"
	"tokyosniper/internal/service"
	"tokyosniper/internal/source"
	"tokyosniper/internal/storage"
	"tokyosniper/internal/trip"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newCache opens redis when configured and falls back to the in-process
// cache otherwise.
func (a *App) newCache(ctx context.Context) (cache.Cache, func()) {
	if a.Config.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		}, a.Logger)
		if err == nil {
			return redisCache, func() { _ = redisCache.Close() }
		}
		a.Logger.Warn().Err(err).Msg("redis unreachable, using in-process cache")
	}
	return cache.NewMemory(nil), func() {}
}

func (a *App) newConverter(c cache.Cache) *currency.Converter {
	return currency.NewConverter(currency.ConverterOptions{
		Timeout: a.Config.Fetch.RequestTimeout,
	}, c, a.Logger)
}

// newFlightSources builds the adapters in the configured fallback order.
// Unknown names are skipped with a warning.
func (a *App) newFlightSources(c cache.Cache, norm *source.Normalizer) []source.FlightSource {
	apifyOpts := source.ApifyOptions{
		BaseURL: a.Config.Sources.Apify.BaseURL,
		Token:   a.Config.Sources.Apify.Token,
		Timeout: a.Config.Fetch.RequestTimeout,
	}

	sources := make([]source.FlightSource, 0, len(a.Config.Sources.FlightOrder))
	for _, name := range a.Config.Sources.FlightOrder {
		switch name {
		case "skyscanner":
			sources = append(sources, source.NewSkyscanner(apifyOpts, norm, a.Logger))
		case "googleflights":
			sources = append(sources, source.NewGoogleFlights(apifyOpts, norm, a.Logger))
		case "serpapi":
			sources = append(sources, source.NewSerpAPI(source.SerpAPIOptions{
				BaseURL: a.Config.Sources.SerpAPI.BaseURL,
				APIKey:  a.Config.Sources.SerpAPI.APIKey,
				Timeout: a.Config.Fetch.RequestTimeout,
			}, norm, a.Logger))
		case "amadeus":
			sources = append(sources, source.NewAmadeus(source.AmadeusOptions{
				BaseURL:   a.Config.Sources.Amadeus.BaseURL,
				APIKey:    a.Config.Sources.Amadeus.APIKey,
				APISecret: a.Config.Sources.Amadeus.APISecret,
				Timeout:   a.Config.Fetch.RequestTimeout,
			}, c, norm, a.Logger))
		default:
			a.Logger.Warn().Str("source", name).Msg("unknown flight source, skipping")
		}
	}
	return sources
}

func (a *App) newStaySources(norm *source.Normalizer) []source.StaySource {
	apifyOpts := source.ApifyOptions{
		BaseURL: a.Config.Sources.Apify.BaseURL,
		Token:   a.Config.Sources.Apify.Token,
		Timeout: a.Config.Fetch.RequestTimeout,
	}
	return []source.StaySource{
		source.NewBooking(apifyOpts, norm, a.Logger),
		source.NewAirbnb(apifyOpts, norm, a.Logger),
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) thresholds() alerting.Thresholds {
	return alerting.Thresholds{
		FlightInstantEurCents: a.Config.Alerts.FlightInstantEurCents,
		FlightDropPercent:     a.Config.Alerts.FlightDropPercent,
		StayInstantUsdCents:   a.Config.Alerts.StayInstantUsdCents,
		StayGoodDealUsdCents:  a.Config.Alerts.StayGoodDealUsdCents,
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// pipeline bundles the wired ingestion and alerting path shared by the HTTP
// handlers, the schedulers, and the one-shot CLI commands.
type pipeline struct {
	orchestrator *service.Orchestrator
	evaluator    *alerting.Evaluator
	gate         *cache.Gate
	cache        cache.Cache
}

func (a *App) buildPipeline(store *storage.Store, c cache.Cache) *pipeline {
	conv := a.newConverter(c)
	norm := source.NewNormalizer(conv)

	orchestrator := service.NewOrchestrator(service.Options{
		FlightSources: a.newFlightSources(c, norm),
		StaySources:   a.newStaySources(norm),
		Flights:       store,
		Stays:         store,
		Enumerator:    trip.DefaultEnumerator(),
		Policy:        service.Policy(a.Config.Fetch.Policy),
		Locker:        store,
	}, a.Logger)

	evaluator := alerting.NewEvaluator(alerting.Options{
		Thresholds: a.thresholds(),
		Flights:    store,
		Stays:      store,
		Alerts:     store,
		Notifier:   a.newNotifier(),
	}, a.Logger)

	return &pipeline{
		orchestrator: orchestrator,
		evaluator:    evaluator,
		gate:         cache.NewGate(c),
		cache:        c,
	}
}

// Run starts the schedulers and the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to run the tracker")
	}
	defer closeStore()

	c, closeCache := a.newCache(ctx)
	defer closeCache()

	p := a.buildPipeline(store, c)

	srv := server.New(server.Options{
		CronSecret: a.Config.Server.CronSecret,
		GateTTL:    a.Config.Fetch.GateTTL,
		Gate:       p.gate,
		Cache:      c,
		Checker:    p.orchestrator,
		Evaluator:  p.evaluator,
		Flights:    store,
		Stays:      store,
		Alerts:     store,
	}, a.Logger)

	a.startScheduler(ctx, a.Config.Scheduler.FlightInterval, "flights", func(tickCtx context.Context) {
		a.sweepFlights(tickCtx, p)
	})
	a.startScheduler(ctx, a.Config.Scheduler.StayInterval, "stays", func(tickCtx context.Context) {
		a.sweepStays(tickCtx, p)
	})
	if a.Config.Scheduler.DigestInterval > 0 {
		a.startScheduler(ctx, a.Config.Scheduler.DigestInterval, "digest", func(tickCtx context.Context) {
			if err := p.evaluator.SendDigest(tickCtx); err != nil {
				a.Logger.Error().Err(err).Msg("digest delivery failed")
			}
		})
	}

	a.Logger.Info().Msg("starting tracker")
	err = srv.Run(ctx, a.Config.Server.Addr)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("server terminated with error")
		return err
	}

	a.Logger.Info().Msg("tracker stopped")
	return nil
}

func (a *App) startScheduler(ctx context.Context, interval time.Duration, name string, tick func(context.Context)) {
	sched := scheduler.New(scheduler.Options{
		Interval:     interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger.With().Str("job", name).Logger())

	go func() {
		err := sched.Run(ctx, func(tickCtx context.Context, _ time.Time) error {
			tick(tickCtx)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Str("job", name).Msg("scheduler stopped")
		}
	}()
}

func (a *App) sweepFlights(ctx context.Context, p *pipeline) {
	if !p.gate.Allow(ctx, "cron:flights:lastRun", a.Config.Fetch.GateTTL) {
		a.Logger.Debug().Msg("flight sweep gated, checked recently")
		return
	}
	result, quotes := p.orchestrator.CheckFlights(ctx)
	if result.Skipped {
		return
	}
	if _, alertErrs := p.evaluator.EvaluateFlights(ctx, quotes); len(alertErrs) > 0 {
		a.Logger.Warn().Strs("errors", alertErrs).Msg("flight alert evaluation reported failures")
	}
	p.cache.DeleteByPattern(ctx, "dashboard:*", "flights:*")
}

func (a *App) sweepStays(ctx context.Context, p *pipeline) {
	if !p.gate.Allow(ctx, "cron:stays:lastRun", a.Config.Fetch.GateTTL) {
		a.Logger.Debug().Msg("stay sweep gated, checked recently")
		return
	}
	result, quotes := p.orchestrator.CheckStays(ctx)
	if result.Skipped {
		return
	}
	if _, alertErrs := p.evaluator.EvaluateStays(ctx, quotes); len(alertErrs) > 0 {
		a.Logger.Warn().Strs("errors", alertErrs).Msg("stay alert evaluation reported failures")
	}
	p.cache.DeleteByPattern(ctx, "dashboard:*", "stays:*")
}

// ExportOptions hold parameters for exporting historical quotes.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Kind  string
	Limit int
}
