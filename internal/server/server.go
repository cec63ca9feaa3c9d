package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tokyosniper/internal/cache"
	"tokyosniper/internal/model"
	"tokyosniper/internal/service"
	"tokyosniper/internal/storage"
)

// Gate keys for the cron endpoints.
const (
	gateKeyFlights = "cron:flights:lastRun"
	gateKeyStays   = "cron:stays:lastRun"
)

// Checker runs ingestion sweeps.
type Checker interface {
	CheckFlights(ctx context.Context) (service.CheckResult, []model.FlightQuote)
	CheckStays(ctx context.Context) (service.CheckResult, []model.StayQuote)
}

// Evaluator matches recorded quotes against alert rules.
type Evaluator interface {
	EvaluateFlights(ctx context.Context, quotes []model.FlightQuote) (int, []string)
	EvaluateStays(ctx context.Context, quotes []model.StayQuote) (int, []string)
	SendDigest(ctx context.Context) error
}

// Options wires the HTTP server.
type Options struct {
	CronSecret string
	GateTTL    time.Duration
	Gate       *cache.Gate
	Cache      cache.Cache
	Checker    Checker
	Evaluator  Evaluator
	Flights    storage.FlightStore
	Stays      storage.StayStore
	Alerts     storage.AlertStore
}

// Server exposes the cron trigger endpoints and the Telegram webhook.
type Server struct {
	engine    *gin.Engine
	secret    string
	gateTTL   time.Duration
	gate      *cache.Gate
	cache     cache.Cache
	checker   Checker
	evaluator Evaluator
	flights   storage.FlightStore
	stays     storage.StayStore
	alerts    storage.AlertStore
	logger    zerolog.Logger
}

// New builds the router.
func New(opts Options, logger zerolog.Logger) *Server {
	gateTTL := opts.GateTTL
	if gateTTL <= 0 {
		gateTTL = 5 * time.Minute
	}

	s := &Server{
		secret:    opts.CronSecret,
		gateTTL:   gateTTL,
		gate:      opts.Gate,
		cache:     opts.Cache,
		checker:   opts.Checker,
		evaluator: opts.Evaluator,
		flights:   opts.Flights,
		stays:     opts.Stays,
		alerts:    opts.Alerts,
		logger:    logger.With().Str("component", "server").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api := engine.Group("/api")
	cron := api.Group("/cron", s.requireCronSecret)
	cron.GET("/check-flights", s.handleCheckFlights)
	cron.GET("/check-stays", s.handleCheckStays)
	cron.GET("/daily-digest", s.handleDailyDigest)
	api.POST("/telegram/webhook", s.handleTelegramWebhook)

	s.engine = engine
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", addr).Msg("http server listening")
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requireCronSecret rejects any request without the configured bearer token.
// An unset secret rejects everything so cron routes cannot run unprotected.
func (s *Server) requireCronSecret(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if s.secret == "" || !ok || token != s.secret {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) handleCheckFlights(c *gin.Context) {
	ctx := c.Request.Context()

	if s.gate != nil && !s.gate.Allow(ctx, gateKeyFlights, s.gateTTL) {
		c.JSON(http.StatusOK, gin.H{
			"skipped":   true,
			"reason":    "checked recently",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	result, quotes := s.checker.CheckFlights(ctx)
	if result.Skipped {
		c.JSON(http.StatusOK, gin.H{
			"skipped":   true,
			"reason":    "check already running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	alertsSent, alertErrs := s.evaluator.EvaluateFlights(ctx, quotes)
	if s.cache != nil {
		s.cache.DeleteByPattern(ctx, "dashboard:*", "flights:*")
	}

	c.JSON(http.StatusOK, checkResponse(result, alertsSent, alertErrs))
}

func (s *Server) handleCheckStays(c *gin.Context) {
	ctx := c.Request.Context()

	if s.gate != nil && !s.gate.Allow(ctx, gateKeyStays, s.gateTTL) {
		c.JSON(http.StatusOK, gin.H{
			"skipped":   true,
			"reason":    "checked recently",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	result, quotes := s.checker.CheckStays(ctx)
	if result.Skipped {
		c.JSON(http.StatusOK, gin.H{
			"skipped":   true,
			"reason":    "check already running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	alertsSent, alertErrs := s.evaluator.EvaluateStays(ctx, quotes)
	if s.cache != nil {
		s.cache.DeleteByPattern(ctx, "dashboard:*", "stays:*")
	}

	c.JSON(http.StatusOK, checkResponse(result, alertsSent, alertErrs))
}

func (s *Server) handleDailyDigest(c *gin.Context) {
	if err := s.evaluator.SendDigest(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func checkResponse(result service.CheckResult, alertsSent int, alertErrs []string) gin.H {
	errs := make([]string, 0, len(result.Errors)+len(alertErrs))
	errs = append(errs, result.Errors...)
	errs = append(errs, alertErrs...)
	return gin.H{
		"success":      true,
		"totalChecked": result.TotalChecked,
		"newRecords":   result.NewRecords,
		"alertsSent":   alertsSent,
		"errors":       errs,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
}
