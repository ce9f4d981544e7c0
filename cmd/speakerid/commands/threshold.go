package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Show or set the acceptance threshold",
	Long: fmt.Sprintf(`Show or set the cosine similarity threshold for accepting a match.

The value must be within [%.2f, %.2f]. Setting it updates the config file.`,
		voiceprint.MinThreshold, voiceprint.MaxThreshold),
}

var thresholdGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the acceptance threshold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		v := getConfig().Threshold
		if outputJSON {
			return outputResult(map[string]float64{"threshold": v}, cli.FormatJSON)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", v)
		return nil
	},
}

var thresholdSetCmd = &cobra.Command{
	Use:   "set <value>",
	Short: "Set and persist the acceptance threshold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().Set("threshold", args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Threshold set to %.2f", getConfig().Threshold)
		return nil
	},
}

func init() {
	thresholdCmd.AddCommand(thresholdGetCmd)
	thresholdCmd.AddCommand(thresholdSetCmd)
}
