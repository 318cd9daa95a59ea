package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"odds-value-alerts/internal/app"
)

var (
	valueAll       bool
	valueOdds      string
	movementsSharp bool
)

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Show fair value signals of the latest snapshot or of ad-hoc odds",
	Example: `  oddswatcher value
  oddswatcher value --odds pinnacle=1.95,bet365=2.05,unibet=2.10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ValueOptions{All: valueAll}
		if valueOdds != "" {
			quotes, err := parseOdds(valueOdds)
			if err != nil {
				return err
			}
			opts.Odds = quotes
		}
		return getApp().Value(cmd.Context(), opts)
	},
}

var movementsCmd = &cobra.Command{
	Use:   "movements",
	Short: "Compare the two most recent snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Movements(cmd.Context(), app.MovementsOptions{SharpOnly: movementsSharp})
	},
}

var disagreementsCmd = &cobra.Command{
	Use:   "disagreements",
	Short: "Show bookmakers deviating from the average price",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Disagreements(cmd.Context())
	},
}

// parseOdds reads "book=price,book=price".
func parseOdds(raw string) (map[string]float64, error) {
	quotes := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		book, price, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(book) == "" {
			return nil, fmt.Errorf("invalid --odds entry %q, want book=price", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", book, err)
		}
		quotes[strings.TrimSpace(book)] = v
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("--odds must list at least one book=price")
	}
	return quotes, nil
}

func init() {
	valueCmd.Flags().BoolVar(&valueAll, "all", false, "Include outcomes graded NONE")
	valueCmd.Flags().StringVar(&valueOdds, "odds", "", "Ad-hoc quotes for one outcome, book=price,...")
	movementsCmd.Flags().BoolVar(&movementsSharp, "sharp-only", false, "Only list moves above the sharp threshold")
}
