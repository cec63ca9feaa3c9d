package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"tokyosniper/internal/model"
)

var (
	simulateKind       string
	simulatePriceCents int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Push a synthetic quote through the alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePriceCents <= 0 {
			return errors.New("--price-cents must be greater than zero")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateKind, simulatePriceCents)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateKind, "kind", model.KindFlight, "What to simulate: flight or stay")
	simulateCmd.Flags().Int64Var(&simulatePriceCents, "price-cents", 0, "Synthetic price, integer minor units (EUR for flights, USD nightly for stays)")
}
