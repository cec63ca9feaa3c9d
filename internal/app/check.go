package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tokyosniper/internal/model"
)

// Check runs one immediate sweep of the given kind, bypassing the rate gate.
func (a *App) Check(ctx context.Context, kind string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot check")
	}
	defer closeStore()

	c, closeCache := a.newCache(ctx)
	defer closeCache()

	p := a.buildPipeline(store, c)

	switch kind {
	case model.KindFlight:
		result, quotes := p.orchestrator.CheckFlights(ctx)
		if result.Skipped {
			fmt.Fprintln(os.Stdout, "check already running elsewhere")
			return nil
		}
		alertsSent, alertErrs := p.evaluator.EvaluateFlights(ctx, quotes)
		p.cache.DeleteByPattern(ctx, "dashboard:*", "flights:*")
		errs := append(result.Errors, alertErrs...)
		printCheckSummary(result.TotalChecked, result.NewRecords, len(errs), alertsSent)
		for _, msg := range errs {
			fmt.Fprintf(os.Stdout, "  error: %s\n", msg)
		}
	case model.KindStay:
		result, quotes := p.orchestrator.CheckStays(ctx)
		if result.Skipped {
			fmt.Fprintln(os.Stdout, "check already running elsewhere")
			return nil
		}
		alertsSent, alertErrs := p.evaluator.EvaluateStays(ctx, quotes)
		p.cache.DeleteByPattern(ctx, "dashboard:*", "stays:*")
		errs := append(result.Errors, alertErrs...)
		printCheckSummary(result.TotalChecked, result.NewRecords, len(errs), alertsSent)
		for _, msg := range errs {
			fmt.Fprintf(os.Stdout, "  error: %s\n", msg)
		}
	default:
		return fmt.Errorf("unknown kind %q, want %s or %s", kind, model.KindFlight, model.KindStay)
	}
	return nil
}

func printCheckSummary(checked, newRecords, errCount, alertsSent int) {
	fmt.Fprintf(os.Stdout, "checked %d, recorded %d, errors %d, alerts sent %d\n",
		checked, newRecords, errCount, alertsSent)
}
