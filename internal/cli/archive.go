package cli

import (
	"github.com/spf13/cobra"

	"odds-value-alerts/internal/app"
)

var archiveList bool

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive the live snapshot log now, or list archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Archive(cmd.Context(), app.ArchiveOptions{List: archiveList})
	},
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveList, "list", false, "List existing daily archives")
}
