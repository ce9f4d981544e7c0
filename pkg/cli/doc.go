// Package cli provides the configuration, directory layout and terminal
// output helpers of the speakerid command.
//
// Configuration is stored in ~/.giztoy/<app>/config.yaml and created with
// defaults on first run. Relative directories in the file are resolved
// against the config directory. Rules that depend on other packages, such
// as the legal threshold range, are passed in as Checks.
//
//	cfg, err := cli.LoadConfigWithPath("speakerid", "", checkThreshold)
//	if err != nil {
//		return err
//	}
//	err = cfg.Set("threshold", "0.8")
//
//	cli.Output(table, cli.OutputOptions{Format: cli.FormatTable})
package cli
