package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokyosniper/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertFlightQuoteSQL = `INSERT INTO flight_quotes (
        origin,
        destination,
        departure_date,
        return_date,
        airline,
        price_eur_cents,
        price_usd_cents,
        price_rsd_cents,
        source,
        stops,
        duration_minutes,
        booking_url,
        raw_data,
        checked_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    )
    RETURNING id;`

	flightQuoteColumns = `id,
        origin,
        destination,
        departure_date,
        return_date,
        airline,
        price_eur_cents,
        price_usd_cents,
        price_rsd_cents,
        source,
        stops,
        duration_minutes,
        booking_url,
        raw_data,
        checked_at`

	lowestPriceBeforeSQL = `SELECT MIN(price_eur_cents)
    FROM flight_quotes
    WHERE destination = $1
      AND departure_date = $2
      AND checked_at < $3;`

	cheapestFlightSQL = `SELECT ` + flightQuoteColumns + `
    FROM flight_quotes
    WHERE ($1 = '' OR destination = $1)
    ORDER BY price_eur_cents ASC, checked_at DESC
    LIMIT 1;`

	recentFlightQuotesSQL = `SELECT ` + flightQuoteColumns + `
    FROM flight_quotes
    ORDER BY checked_at DESC
    LIMIT $1;`

	flightQuotesBetweenSQL = `SELECT ` + flightQuoteColumns + `
    FROM flight_quotes
    WHERE checked_at >= $1
      AND checked_at < $2
    ORDER BY checked_at;`

	resolveAccommodationSQL = `INSERT INTO accommodations (
        name,
        neighborhood,
        platform,
        url,
        property_type,
        rating,
        review_count,
        amenities
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (name, platform, neighborhood) DO UPDATE SET
        url = EXCLUDED.url,
        property_type = EXCLUDED.property_type,
        rating = EXCLUDED.rating,
        review_count = EXCLUDED.review_count,
        amenities = EXCLUDED.amenities
    RETURNING id;`

	insertStayQuoteSQL = `INSERT INTO accommodation_quotes (
        accommodation_id,
        nightly_eur_cents,
        nightly_usd_cents,
        nightly_rsd_cents,
        nightly_jpy_cents,
        total_usd_cents,
        check_in,
        check_out,
        source,
        raw_data,
        checked_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    RETURNING id;`

	stayQuoteColumns = `q.id,
        q.accommodation_id,
        a.name,
        a.neighborhood,
        a.platform,
        a.url,
        a.property_type,
        a.rating,
        a.review_count,
        a.amenities,
        q.nightly_eur_cents,
        q.nightly_usd_cents,
        q.nightly_rsd_cents,
        q.nightly_jpy_cents,
        q.total_usd_cents,
        q.check_in,
        q.check_out,
        q.source,
        q.raw_data,
        q.checked_at`

	cheapestStaysSQL = `SELECT * FROM (
        SELECT DISTINCT ON (q.accommodation_id) ` + stayQuoteColumns + `
        FROM accommodation_quotes q
        JOIN accommodations a ON a.id = q.accommodation_id
        ORDER BY q.accommodation_id, q.nightly_usd_cents ASC
    ) best
    ORDER BY nightly_usd_cents ASC
    LIMIT $1;`

	recentStayQuotesSQL = `SELECT ` + stayQuoteColumns + `
    FROM accommodation_quotes q
    JOIN accommodations a ON a.id = q.accommodation_id
    ORDER BY q.checked_at DESC
    LIMIT $1;`

	alertConfigColumns = `id, kind, label, threshold_cents, currency, enabled, created_at`

	enabledConfigsSQL = `SELECT ` + alertConfigColumns + `
    FROM alert_configs
    WHERE enabled AND kind = $1
    ORDER BY id;`

	listConfigsSQL = `SELECT ` + alertConfigColumns + `
    FROM alert_configs
    ORDER BY id;`

	insertConfigSQL = `INSERT INTO alert_configs (
        kind, label, threshold_cents, currency, enabled
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING ` + alertConfigColumns + `;`

	setConfigEnabledSQL = `UPDATE alert_configs SET enabled = $2 WHERE id = $1;`

	deleteConfigSQL = `DELETE FROM alert_configs WHERE id = $1;`

	insertHistorySQL = `INSERT INTO alert_history (
        config_id, kind, message, price_cents, currency, sent_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	recentHistorySQL = `SELECT id, config_id, kind, message, price_cents, currency, sent_at
    FROM alert_history
    ORDER BY sent_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// FlightStore defines operations for flight quote persistence.
type FlightStore interface {
	InsertFlightQuote(ctx context.Context, quote model.FlightQuote) (int64, error)
	LowestPriceBefore(ctx context.Context, destination, departureDate string, before time.Time) (int64, bool, error)
	CheapestFlight(ctx context.Context, destination string) (model.FlightQuote, bool, error)
	RecentFlightQuotes(ctx context.Context, limit int) ([]model.FlightQuote, error)
	FlightQuotesBetween(ctx context.Context, from, to time.Time) ([]model.FlightQuote, error)
}

// StayStore defines operations for accommodation persistence.
type StayStore interface {
	ResolveAccommodation(ctx context.Context, quote model.StayQuote) (int64, error)
	InsertStayQuote(ctx context.Context, accommodationID int64, quote model.StayQuote) (int64, error)
	CheapestStays(ctx context.Context, limit int) ([]model.StayQuote, error)
	RecentStayQuotes(ctx context.Context, limit int) ([]model.StayQuote, error)
}

// AlertStore defines operations for alert rules and delivery history.
type AlertStore interface {
	EnabledConfigs(ctx context.Context, kind string) ([]model.AlertConfig, error)
	ListConfigs(ctx context.Context) ([]model.AlertConfig, error)
	InsertConfig(ctx context.Context, cfg model.AlertConfig) (model.AlertConfig, error)
	SetConfigEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteConfig(ctx context.Context, id int64) error
	InsertHistory(ctx context.Context, entry model.AlertHistoryEntry) error
	RecentHistory(ctx context.Context, limit int) ([]model.AlertHistoryEntry, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to flight quotes, accommodations and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertFlightQuote persists one flight price observation.
func (s *Store) InsertFlightQuote(ctx context.Context, quote model.FlightQuote) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertFlightQuoteSQL,
		quote.Origin,
		quote.Destination,
		dateParam(quote.DepartureDate),
		dateParam(quote.ReturnDate),
		quote.Airline,
		quote.PriceEurCents,
		quote.PriceUsdCents,
		quote.PriceRsdCents,
		quote.Source,
		quote.Stops,
		quote.DurationMinutes,
		quote.BookingURL,
		[]byte(quote.RawData),
		quote.CheckedAt,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert flight quote: %w", scanErr)
	}
	return id, nil
}

// LowestPriceBefore returns the lowest recorded EUR price for a destination
// and departure date among observations made strictly before the cutoff. The
// second return is false when no prior observation exists.
func (s *Store) LowestPriceBefore(ctx context.Context, destination, departureDate string, before time.Time) (int64, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, false, err
	}

	var lowest sql.NullInt64
	if scanErr := pool.QueryRow(ctx, lowestPriceBeforeSQL, destination, departureDate, before).Scan(&lowest); scanErr != nil {
		return 0, false, fmt.Errorf("lowest price before: %w", scanErr)
	}
	if !lowest.Valid {
		return 0, false, nil
	}
	return lowest.Int64, true, nil
}

// CheapestFlight returns the overall cheapest recorded flight. An empty
// destination matches any route. The second return is false when nothing is
// recorded yet.
func (s *Store) CheapestFlight(ctx context.Context, destination string) (model.FlightQuote, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.FlightQuote{}, false, err
	}

	rows, queryErr := pool.Query(ctx, cheapestFlightSQL, destination)
	if queryErr != nil {
		return model.FlightQuote{}, false, fmt.Errorf("cheapest flight: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		return model.FlightQuote{}, false, rows.Err()
	}
	quote, scanErr := scanFlightQuote(rows)
	if scanErr != nil {
		return model.FlightQuote{}, false, scanErr
	}
	return quote, true, nil
}

// RecentFlightQuotes lists the most recent flight observations.
func (s *Store) RecentFlightQuotes(ctx context.Context, limit int) ([]model.FlightQuote, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, recentFlightQuotesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("recent flight quotes: %w", queryErr)
	}
	defer rows.Close()

	return collectFlightQuotes(rows, limit)
}

// FlightQuotesBetween lists observations within a time window ordered by
// observation time.
func (s *Store) FlightQuotesBetween(ctx context.Context, from, to time.Time) ([]model.FlightQuote, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, flightQuotesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("flight quotes between: %w", queryErr)
	}
	defer rows.Close()

	return collectFlightQuotes(rows, 0)
}

// ResolveAccommodation upserts the property identified by
// name+platform+neighborhood and returns its id. Concurrent sweeps racing on
// the same property converge on one row; the latest scrape's metadata wins.
func (s *Store) ResolveAccommodation(ctx context.Context, quote model.StayQuote) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	amenities, marshalErr := amenitiesParam(quote.Amenities)
	if marshalErr != nil {
		return 0, fmt.Errorf("encode amenities: %w", marshalErr)
	}

	var id int64
	scanErr := pool.QueryRow(ctx, resolveAccommodationSQL,
		quote.Name,
		quote.Neighborhood,
		quote.Platform,
		quote.URL,
		quote.PropertyType,
		quote.Rating,
		quote.ReviewCount,
		amenities,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("resolve accommodation: %w", scanErr)
	}
	return id, nil
}

// InsertStayQuote persists one nightly price observation for a resolved
// accommodation.
func (s *Store) InsertStayQuote(ctx context.Context, accommodationID int64, quote model.StayQuote) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertStayQuoteSQL,
		accommodationID,
		quote.NightlyEurCents,
		quote.NightlyUsdCents,
		quote.NightlyRsdCents,
		quote.NightlyJpyCents,
		quote.TotalUsdCents,
		dateParam(quote.CheckIn),
		dateParam(quote.CheckOut),
		quote.Source,
		[]byte(quote.RawData),
		quote.CheckedAt,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert stay quote: %w", scanErr)
	}
	return id, nil
}

// CheapestStays returns each property's lowest observed nightly USD price,
// cheapest first.
func (s *Store) CheapestStays(ctx context.Context, limit int) ([]model.StayQuote, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, cheapestStaysSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("cheapest stays: %w", queryErr)
	}
	defer rows.Close()

	return collectStayQuotes(rows, limit)
}

// RecentStayQuotes lists the most recent stay observations.
func (s *Store) RecentStayQuotes(ctx context.Context, limit int) ([]model.StayQuote, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, recentStayQuotesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("recent stay quotes: %w", queryErr)
	}
	defer rows.Close()

	return collectStayQuotes(rows, limit)
}

// EnabledConfigs lists enabled alert rules for one kind.
func (s *Store) EnabledConfigs(ctx context.Context, kind string) ([]model.AlertConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, enabledConfigsSQL, kind)
	if queryErr != nil {
		return nil, fmt.Errorf("enabled configs: %w", queryErr)
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// ListConfigs lists every alert rule regardless of state.
func (s *Store) ListConfigs(ctx context.Context) ([]model.AlertConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listConfigsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list configs: %w", queryErr)
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// InsertConfig persists a new alert rule and returns it with server-assigned
// fields populated.
func (s *Store) InsertConfig(ctx context.Context, cfg model.AlertConfig) (model.AlertConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.AlertConfig{}, err
	}

	row := pool.QueryRow(ctx, insertConfigSQL,
		cfg.Kind, cfg.Label, cfg.ThresholdCents, string(cfg.Currency), cfg.Enabled)

	stored, scanErr := scanConfigRow(row)
	if scanErr != nil {
		return model.AlertConfig{}, fmt.Errorf("insert config: %w", scanErr)
	}
	return stored, nil
}

// SetConfigEnabled toggles one alert rule.
func (s *Store) SetConfigEnabled(ctx context.Context, id int64, enabled bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, setConfigEnabledSQL, id, enabled)
	if execErr != nil {
		return fmt.Errorf("set config enabled: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteConfig removes one alert rule.
func (s *Store) DeleteConfig(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteConfigSQL, id)
	if execErr != nil {
		return fmt.Errorf("delete config: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// InsertHistory records one delivered deal.
func (s *Store) InsertHistory(ctx context.Context, entry model.AlertHistoryEntry) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var configID any
	if entry.ConfigID != nil {
		configID = *entry.ConfigID
	}

	if _, execErr := pool.Exec(ctx, insertHistorySQL,
		configID,
		entry.Kind,
		entry.Message,
		entry.PriceCents,
		string(entry.Currency),
		entry.SentAt,
	); execErr != nil {
		return fmt.Errorf("insert history: %w", execErr)
	}
	return nil
}

// RecentHistory lists the most recent delivered deals.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]model.AlertHistoryEntry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, recentHistorySQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("recent history: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]model.AlertHistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry    model.AlertHistoryEntry
			configID sql.NullInt64
			cur      string
		)
		if err := rows.Scan(
			&entry.ID,
			&configID,
			&entry.Kind,
			&entry.Message,
			&entry.PriceCents,
			&cur,
			&entry.SentAt,
		); err != nil {
			return nil, err
		}
		if configID.Valid {
			value := configID.Int64
			entry.ConfigID = &value
		}
		entry.Currency = model.Currency(cur)
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

func collectFlightQuotes(rows pgx.Rows, capacity int) ([]model.FlightQuote, error) {
	quotes := make([]model.FlightQuote, 0, capacity)
	for rows.Next() {
		quote, scanErr := scanFlightQuote(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		quotes = append(quotes, quote)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return quotes, nil
}

func scanFlightQuote(rows pgx.Rows) (model.FlightQuote, error) {
	var (
		quote   model.FlightQuote
		depDate sql.NullTime
		retDate sql.NullTime
		raw     json.RawMessage
	)

	if err := rows.Scan(
		&quote.ID,
		&quote.Origin,
		&quote.Destination,
		&depDate,
		&retDate,
		&quote.Airline,
		&quote.PriceEurCents,
		&quote.PriceUsdCents,
		&quote.PriceRsdCents,
		&quote.Source,
		&quote.Stops,
		&quote.DurationMinutes,
		&quote.BookingURL,
		&raw,
		&quote.CheckedAt,
	); err != nil {
		return model.FlightQuote{}, err
	}

	quote.DepartureDate = formatDate(depDate)
	quote.ReturnDate = formatDate(retDate)
	quote.RawData = raw
	return quote, nil
}

func collectStayQuotes(rows pgx.Rows, capacity int) ([]model.StayQuote, error) {
	quotes := make([]model.StayQuote, 0, capacity)
	for rows.Next() {
		quote, scanErr := scanStayQuote(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		quotes = append(quotes, quote)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return quotes, nil
}

func scanStayQuote(rows pgx.Rows) (model.StayQuote, error) {
	var (
		quote     model.StayQuote
		amenities json.RawMessage
		checkIn   sql.NullTime
		checkOut  sql.NullTime
		raw       json.RawMessage
	)

	if err := rows.Scan(
		&quote.ID,
		&quote.AccommodationID,
		&quote.Name,
		&quote.Neighborhood,
		&quote.Platform,
		&quote.URL,
		&quote.PropertyType,
		&quote.Rating,
		&quote.ReviewCount,
		&amenities,
		&quote.NightlyEurCents,
		&quote.NightlyUsdCents,
		&quote.NightlyRsdCents,
		&quote.NightlyJpyCents,
		&quote.TotalUsdCents,
		&checkIn,
		&checkOut,
		&quote.Source,
		&raw,
		&quote.CheckedAt,
	); err != nil {
		return model.StayQuote{}, err
	}

	quote.Amenities = decodeAmenities(amenities)
	quote.CheckIn = formatDate(checkIn)
	quote.CheckOut = formatDate(checkOut)
	quote.RawData = raw
	return quote, nil
}

func collectConfigs(rows pgx.Rows) ([]model.AlertConfig, error) {
	configs := make([]model.AlertConfig, 0)
	for rows.Next() {
		cfg, scanErr := scanConfigRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		configs = append(configs, cfg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return configs, nil
}

func scanConfigRow(row pgx.Row) (model.AlertConfig, error) {
	var (
		cfg model.AlertConfig
		cur string
	)
	if err := row.Scan(
		&cfg.ID,
		&cfg.Kind,
		&cfg.Label,
		&cfg.ThresholdCents,
		&cur,
		&cfg.Enabled,
		&cfg.CreatedAt,
	); err != nil {
		return model.AlertConfig{}, err
	}
	cfg.Currency = model.Currency(cur)
	return cfg, nil
}

var (
	_ FlightStore    = (*Store)(nil)
	_ StayStore      = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
