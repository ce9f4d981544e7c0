package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
)

const appName = "speakerid"

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "speakerid",
	Short: "Voice enrollment and speaker identification",
	Long: `speakerid - enroll voices and identify speakers.

Each enrolled speaker is stored as a voice embedding. Identification
compares a probe recording against every enrolled embedding by cosine
similarity and accepts the best match at or above the threshold.

Configuration is stored in ~/.giztoy/speakerid/config.yaml.

Examples:
  # Enroll alice from a recording
  speakerid register alice.wav alice

  # Identify a recording
  speakerid identify unknown.mp3

  # Enroll every file in the reference directory
  speakerid auto-register

  # Run the interactive shell
  speakerid shell
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.giztoy/speakerid/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(autoRegisterCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(thresholdCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shellCmd)
}

func initConfig() {
	// Configure slog based on verbose flag
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile, configChecks...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// outputResult writes result as JSON with --json, otherwise in the given
// terminal format.
func outputResult(result any, format cli.OutputFormat) error {
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format})
}
