package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"tokyosniper/internal/currency"
	"tokyosniper/internal/model"
)

// AddAlertConfig persists a new custom rule and prints its assigned id.
func (a *App) AddAlertConfig(ctx context.Context, kind, label string, thresholdCents int64, cur string) error {
	if kind != model.KindFlight && kind != model.KindStay {
		return fmt.Errorf("unknown kind %q, want %s or %s", kind, model.KindFlight, model.KindStay)
	}
	if thresholdCents <= 0 {
		return errors.New("threshold must be greater than zero")
	}
	normalized, ok := parseCurrency(cur)
	if !ok {
		return fmt.Errorf("unknown currency %q, want EUR, USD, RSD or JPY", cur)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage alert rules")
	}
	defer closeStore()

	cfg, err := store.InsertConfig(ctx, model.AlertConfig{
		Kind:           kind,
		Label:          label,
		ThresholdCents: thresholdCents,
		Currency:       normalized,
		Enabled:        true,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "rule %d created: %s %s below %s\n",
		cfg.ID, cfg.Kind, cfg.Label, currency.FormatPrice(cfg.ThresholdCents, cfg.Currency))
	return nil
}

// ListAlertConfigs prints every stored rule.
func (a *App) ListAlertConfigs(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage alert rules")
	}
	defer closeStore()

	configs, err := store.ListConfigs(ctx)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		fmt.Fprintln(os.Stdout, "no alert rules configured")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tKind\tLabel\tThreshold\tEnabled\tCreated (UTC)")
	for _, cfg := range configs {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%t\t%s\n",
			cfg.ID,
			cfg.Kind,
			sanitizeInline(cfg.Label),
			currency.FormatPrice(cfg.ThresholdCents, cfg.Currency),
			cfg.Enabled,
			cfg.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	writer.Flush()
	return nil
}

// SetAlertEnabled toggles a rule without removing its history.
func (a *App) SetAlertEnabled(ctx context.Context, id int64, enabled bool) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage alert rules")
	}
	defer closeStore()

	if err := store.SetConfigEnabled(ctx, id, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(os.Stdout, "rule %d %s\n", id, state)
	return nil
}

// RemoveAlertConfig deletes a rule. Past history rows keep their message but
// lose the config reference.
func (a *App) RemoveAlertConfig(ctx context.Context, id int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage alert rules")
	}
	defer closeStore()

	if err := store.DeleteConfig(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "rule %d removed\n", id)
	return nil
}

func parseCurrency(raw string) (model.Currency, bool) {
	switch model.Currency(raw) {
	case model.CurrencyEUR, model.CurrencyUSD, model.CurrencyRSD, model.CurrencyJPY:
		return model.Currency(raw), true
	}
	return "", false
}
