package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tokyosniper/internal/app"
	"tokyosniper/internal/model"
)

var (
	showKind  string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent quotes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Kind:  showKind,
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showKind, "kind", model.KindFlight, "What to show: flight or stay")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of quotes to display")
}
