package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/history"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// configChecks are the config rules owned by the domain packages.
var configChecks = []cli.Check{checkThreshold, checkHistory}

func checkThreshold(c *cli.Config) error {
	if !voiceprint.ValidThreshold(c.Threshold) {
		return fmt.Errorf("%w: threshold %.2f not in [%.2f, %.2f]",
			cli.ErrInvalidConfig, c.Threshold, voiceprint.MinThreshold, voiceprint.MaxThreshold)
	}
	return nil
}

func checkHistory(c *cli.Config) error {
	switch c.History {
	case history.KindBadger, history.KindMemory, history.KindOff:
		return nil
	}
	return fmt.Errorf("%w: history %q (want badger, memory or off)", cli.ErrInvalidConfig, c.History)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: fmt.Sprintf(`Manage CLI configuration.

Configuration is stored in ~/.giztoy/speakerid/config.yaml. Relative
directories are resolved against the directory holding the file.

Keys: %s`, strings.Join(cli.Keys(), ", ")),
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the full configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return outputResult(getConfig(), cli.FormatYAML)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Display one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := getConfig().Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set and save one configuration value",
	Long: `Set and save one configuration value. The value is validated first
and the file is left unchanged when it is rejected.

Example:
  speakerid config set threshold 0.8
  speakerid config set include "*.wav,*.mp3"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().Set(args[0], args[1]); err != nil {
			return err
		}
		cli.PrintSuccess("%s updated", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), getConfig().Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
