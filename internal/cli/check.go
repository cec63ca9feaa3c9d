package cli

import (
	"github.com/spf13/cobra"

	"tokyosniper/internal/model"
)

var checkKind string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one immediate price check",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context(), checkKind)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkKind, "kind", model.KindFlight, "What to check: flight or stay")
}
