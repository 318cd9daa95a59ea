package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"odds-value-alerts/internal/app"
)

var (
	simulateBook    string
	simulateOutcome string
	simulateOld     float64
	simulateNew     float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次盘口变动并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOld <= 1 || simulateNew <= 1 {
			return errors.New("--old 与 --new 必须大于 1")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Bookmaker: simulateBook,
			Outcome:   simulateOutcome,
			Old:       simulateOld,
			New:       simulateNew,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateBook, "bookmaker", "pinnacle", "模拟的博彩公司")
	simulateCmd.Flags().StringVar(&simulateOutcome, "outcome", "Home", "模拟的赛果")
	simulateCmd.Flags().Float64Var(&simulateOld, "old", 1.80, "变动前赔率")
	simulateCmd.Flags().Float64Var(&simulateNew, "new", 2.10, "变动后赔率")
}
