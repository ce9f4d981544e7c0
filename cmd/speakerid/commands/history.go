package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent identification attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			entries, err := a.ctrl.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputResult(entries, cli.FormatJSON)
			}
			if len(entries) == 0 {
				cli.PrintInfo("No identification attempts recorded.")
				return nil
			}
			tbl := cli.Table{Header: []string{"time", "source", "best", "score", "result"}}
			for _, e := range entries {
				result := "unknown"
				switch {
				case !e.Matched:
					result = "no templates"
				case e.Accepted:
					result = "accepted"
				}
				tbl.Rows = append(tbl.Rows, []string{
					cli.FormatTime(e.Time),
					e.Source,
					e.UserID,
					cli.FormatScore(e.Score, e.Threshold),
					result,
				})
			}
			return outputResult(tbl, cli.FormatTable)
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all identification history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			_, err := a.ctrl.ClearHistory(cmd.Context())
			return err
		})
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of entries (0 for all)")
	historyCmd.AddCommand(historyClearCmd)
}
