package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"odds-value-alerts/internal/app"
)

var (
	showLimit     int
	showSharpOnly bool
	showAlerts    bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent audited line movements or alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:     showLimit,
			SharpOnly: showSharpOnly,
			Alerts:    showAlerts,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
	showCmd.Flags().BoolVar(&showSharpOnly, "sharp-only", true, "Only list sharp movements")
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "List sent alerts instead of movements")
}
