package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"tokyosniper/internal/model"
)

var (
	alertKind      string
	alertLabel     string
	alertThreshold int64
	alertCurrency  string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage custom alert rules",
}

var alertsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a custom price rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertLabel == "" {
			return errors.New("--label is required")
		}
		if alertThreshold <= 0 {
			return errors.New("--threshold-cents must be greater than zero")
		}
		return getApp().AddAlertConfig(cmd.Context(), alertKind, alertLabel, alertThreshold, alertCurrency)
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlertConfigs(cmd.Context())
	},
}

var alertsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRuleID(args[0])
		if err != nil {
			return err
		}
		return getApp().SetAlertEnabled(cmd.Context(), id, true)
	},
}

var alertsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a rule without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRuleID(args[0])
		if err != nil {
			return err
		}
		return getApp().SetAlertEnabled(cmd.Context(), id, false)
	},
}

var alertsRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRuleID(args[0])
		if err != nil {
			return err
		}
		return getApp().RemoveAlertConfig(cmd.Context(), id)
	},
}

func parseRuleID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("rule id must be a positive integer")
	}
	return id, nil
}

func init() {
	alertsAddCmd.Flags().StringVar(&alertKind, "kind", model.KindFlight, "Rule kind: flight or stay")
	alertsAddCmd.Flags().StringVar(&alertLabel, "label", "", "Human-readable rule name")
	alertsAddCmd.Flags().Int64Var(&alertThreshold, "threshold-cents", 0, "Alert when a price falls below this, integer minor units")
	alertsAddCmd.Flags().StringVar(&alertCurrency, "currency", "EUR", "Threshold currency: EUR, USD, RSD or JPY")

	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsEnableCmd)
	alertsCmd.AddCommand(alertsDisableCmd)
	alertsCmd.AddCommand(alertsRemoveCmd)
}
