package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Apify actor identifiers, in API path form (owner~actor). Easy to swap if an
// actor gets deprecated.
const (
	actorSkyscanner    = "canadesk~skyscanner-flights-api"
	actorGoogleFlights = "simpleapi~google-flights-scraper"
	actorBooking       = "voyager~booking-scraper"
	actorAirbnb        = "tri_angle~airbnb-scraper"
)

// ApifyOptions parameterise the shared Apify actor client.
type ApifyOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// apifyClient runs actors synchronously and returns their dataset items. It
// is shared by every Apify-backed adapter.
type apifyClient struct {
	opts    ApifyOptions
	client  *http.Client
	baseURL string
}

func newApifyClient(opts ApifyOptions) *apifyClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		// Actor runs block until scraping completes.
		timeout = 120 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.apify.com"
	}
	return &apifyClient{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// runActor executes one synchronous actor run and returns the raw dataset
// items.
func (c *apifyClient) runActor(ctx context.Context, actorID string, input any) ([]json.RawMessage, error) {
	if c.opts.Token == "" {
		return nil, errors.New("apify token not configured")
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s",
		c.baseURL, actorID, c.opts.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("apify actor %s status %d: %s",
			actorID, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("parse apify dataset: %w", err)
	}
	return items, nil
}
