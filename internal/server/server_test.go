package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tokyosniper/internal/cache"
	"tokyosniper/internal/model"
	"tokyosniper/internal/service"
)

type fakeChecker struct {
	flightCalls int
	stayCalls   int
	result      service.CheckResult
	quotes      []model.FlightQuote
	stayQuotes  []model.StayQuote
}

func (f *fakeChecker) CheckFlights(context.Context) (service.CheckResult, []model.FlightQuote) {
	f.flightCalls++
	return f.result, f.quotes
}

func (f *fakeChecker) CheckStays(context.Context) (service.CheckResult, []model.StayQuote) {
	f.stayCalls++
	return f.result, f.stayQuotes
}

type fakeEvaluator struct {
	alertsSent  int
	alertErrs   []string
	digestCalls int
}

func (f *fakeEvaluator) EvaluateFlights(context.Context, []model.FlightQuote) (int, []string) {
	return f.alertsSent, f.alertErrs
}

func (f *fakeEvaluator) EvaluateStays(context.Context, []model.StayQuote) (int, []string) {
	return f.alertsSent, f.alertErrs
}

func (f *fakeEvaluator) SendDigest(context.Context) error {
	f.digestCalls++
	return nil
}

type fakeFlightStore struct {
	cheapest *model.FlightQuote
	recent   []model.FlightQuote
}

func (f *fakeFlightStore) InsertFlightQuote(context.Context, model.FlightQuote) (int64, error) {
	return 0, nil
}

func (f *fakeFlightStore) LowestPriceBefore(context.Context, string, string, time.Time) (int64, bool, error) {
	return 0, false, nil
}

func (f *fakeFlightStore) CheapestFlight(context.Context, string) (model.FlightQuote, bool, error) {
	if f.cheapest == nil {
		return model.FlightQuote{}, false, nil
	}
	return *f.cheapest, true, nil
}

func (f *fakeFlightStore) RecentFlightQuotes(context.Context, int) ([]model.FlightQuote, error) {
	return f.recent, nil
}

func (f *fakeFlightStore) FlightQuotesBetween(context.Context, time.Time, time.Time) ([]model.FlightQuote, error) {
	return nil, nil
}

type fakeStayStore struct {
	cheapest []model.StayQuote
	recent   []model.StayQuote
}

func (f *fakeStayStore) ResolveAccommodation(context.Context, model.StayQuote) (int64, error) {
	return 0, nil
}

func (f *fakeStayStore) InsertStayQuote(context.Context, int64, model.StayQuote) (int64, error) {
	return 0, nil
}

func (f *fakeStayStore) CheapestStays(context.Context, int) ([]model.StayQuote, error) {
	return f.cheapest, nil
}

func (f *fakeStayStore) RecentStayQuotes(context.Context, int) ([]model.StayQuote, error) {
	return f.recent, nil
}

type fakeAlertStore struct{}

func (f *fakeAlertStore) EnabledConfigs(context.Context, string) ([]model.AlertConfig, error) {
	return nil, nil
}

func (f *fakeAlertStore) ListConfigs(context.Context) ([]model.AlertConfig, error) { return nil, nil }

func (f *fakeAlertStore) InsertConfig(_ context.Context, cfg model.AlertConfig) (model.AlertConfig, error) {
	return cfg, nil
}

func (f *fakeAlertStore) SetConfigEnabled(context.Context, int64, bool) error { return nil }

func (f *fakeAlertStore) DeleteConfig(context.Context, int64) error { return nil }

func (f *fakeAlertStore) InsertHistory(context.Context, model.AlertHistoryEntry) error { return nil }

func (f *fakeAlertStore) RecentHistory(context.Context, int) ([]model.AlertHistoryEntry, error) {
	return nil, nil
}

type serverFixture struct {
	server    *Server
	checker   *fakeChecker
	evaluator *fakeEvaluator
	cache     *cache.Memory
}

func newFixture(secret string) *serverFixture {
	mem := cache.NewMemory(nil)
	checker := &fakeChecker{result: service.CheckResult{TotalChecked: 10, NewRecords: 4}}
	evaluator := &fakeEvaluator{alertsSent: 1}
	srv := New(Options{
		CronSecret: secret,
		GateTTL:    5 * time.Minute,
		Gate:       cache.NewGate(mem),
		Cache:      mem,
		Checker:    checker,
		Evaluator:  evaluator,
		Flights:    &fakeFlightStore{},
		Stays:      &fakeStayStore{},
		Alerts:     &fakeAlertStore{},
	}, zerolog.Nop())
	return &serverFixture{server: srv, checker: checker, evaluator: evaluator, cache: mem}
}

func doRequest(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCronRejectsMissingToken(t *testing.T) {
	f := newFixture("s3cret")

	rec := doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if f.checker.flightCalls != 0 {
		t.Fatal("rejected requests must not trigger a check")
	}
}

func TestCronRejectsWrongToken(t *testing.T) {
	f := newFixture("s3cret")

	rec := doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCronRejectsWhenSecretUnset(t *testing.T) {
	f := newFixture("")

	rec := doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("an unset secret must reject everything, got %d", rec.Code)
	}
}

func TestCheckFlightsSuccess(t *testing.T) {
	f := newFixture("s3cret")

	rec := doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "s3cret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["totalChecked"].(float64) != 10 {
		t.Fatalf("unexpected totalChecked: %v", payload)
	}
	if payload["newRecords"].(float64) != 4 {
		t.Fatalf("unexpected newRecords: %v", payload)
	}
	if payload["alertsSent"].(float64) != 1 {
		t.Fatalf("unexpected alertsSent: %v", payload)
	}
}

func TestCheckFlightsSurfacesAlertErrors(t *testing.T) {
	f := newFixture("s3cret")
	f.checker.result.Errors = []string{"serpapi NRT: quota exceeded"}
	f.evaluator.alertErrs = []string{"send consolidated flight alert: telegram unreachable"}

	rec := doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "s3cret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	errs, ok := payload["errors"].([]any)
	if !ok || len(errs) != 2 {
		t.Fatalf("check and alert failures should merge into one list: %v", payload["errors"])
	}
	if errs[1] != "send consolidated flight alert: telegram unreachable" {
		t.Fatalf("unexpected alert error entry: %v", errs[1])
	}
}

func TestCheckFlightsGated(t *testing.T) {
	f := newFixture("s3cret")

	doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "s3cret", "")
	rec := doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "s3cret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	if payload["skipped"] != true {
		t.Fatalf("second call within the window should skip: %v", payload)
	}
	if f.checker.flightCalls != 1 {
		t.Fatalf("gated calls must not re-run the check, got %d runs", f.checker.flightCalls)
	}
}

func TestCheckFlightsInvalidatesCaches(t *testing.T) {
	f := newFixture("s3cret")
	ctx := context.Background()
	f.cache.Set(ctx, "flights:recent", "x", time.Hour)
	f.cache.Set(ctx, "dashboard:summary", "x", time.Hour)
	f.cache.Set(ctx, "stays:recent", "x", time.Hour)

	doRequest(t, f.server, http.MethodGet, "/api/cron/check-flights", "s3cret", "")

	if _, ok := f.cache.Get(ctx, "flights:recent"); ok {
		t.Fatal("flight caches should be invalidated")
	}
	if _, ok := f.cache.Get(ctx, "dashboard:summary"); ok {
		t.Fatal("dashboard caches should be invalidated")
	}
	if _, ok := f.cache.Get(ctx, "stays:recent"); !ok {
		t.Fatal("stay caches should survive a flight check")
	}
}

func TestDailyDigest(t *testing.T) {
	f := newFixture("s3cret")

	rec := doRequest(t, f.server, http.MethodGet, "/api/cron/daily-digest", "s3cret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWebhookCheapestCommand(t *testing.T) {
	f := newFixture("s3cret")

	body := `{"message":{"chat":{"id":42},"text":"/cheapest"}}`
	rec := doRequest(t, f.server, http.MethodPost, "/api/telegram/webhook", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["method"] != "sendMessage" {
		t.Fatalf("webhook should answer inline: %v", payload)
	}
	if payload["chat_id"].(float64) != 42 {
		t.Fatalf("reply must target the sender chat: %v", payload)
	}
	if !strings.Contains(payload["text"].(string), "No flight quotes") {
		t.Fatalf("unexpected reply: %v", payload["text"])
	}
}

func TestWebhookUnknownCommandGetsHelp(t *testing.T) {
	f := newFixture("s3cret")

	body := `{"message":{"chat":{"id":42},"text":"/nonsense"}}`
	rec := doRequest(t, f.server, http.MethodPost, "/api/telegram/webhook", "", body)

	var payload map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	if !strings.Contains(payload["text"].(string), "Commands:") {
		t.Fatalf("unknown commands should get the help text: %v", payload["text"])
	}
}

func TestWebhookToleratesGarbage(t *testing.T) {
	f := newFixture("s3cret")

	rec := doRequest(t, f.server, http.MethodPost, "/api/telegram/webhook", "", "not json")
	if rec.Code != http.StatusOK {
		t.Fatalf("telegram retries non-200, expected 200, got %d", rec.Code)
	}
}
