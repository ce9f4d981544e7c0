package commands

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/speaker"
)

var autoRegisterCmd = &cobra.Command{
	Use:   "auto-register",
	Short: "Enroll every audio file in the reference directory",
	Long: `Enroll every file in the reference directory that matches the
configured include patterns, using the file name without extension as
user id. Files that fail are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			var bar *progressbar.ProgressBar
			progress := func(p speaker.Progress) {
				if outputJSON {
					return
				}
				if bar == nil {
					bar = progressbar.NewOptions(p.Total,
						progressbar.OptionSetWriter(cmd.ErrOrStderr()),
						progressbar.OptionEnableColorCodes(true),
						progressbar.OptionSetWidth(40),
						progressbar.OptionShowCount(),
						progressbar.OptionSetDescription("[cyan]Registering[reset]"),
						progressbar.OptionSetTheme(progressbar.Theme{
							Saucer:        "[green]=[reset]",
							SaucerHead:    "[green]>[reset]",
							SaucerPadding: " ",
							BarStart:      "[",
							BarEnd:        "]",
						}),
						progressbar.OptionOnCompletion(func() {
							fmt.Fprintln(cmd.ErrOrStderr())
						}),
					)
				}
				bar.Describe(fmt.Sprintf("[cyan]Registering[reset] %s", p.UserID))
				bar.Set(p.Done)
			}

			start := time.Now()
			rep, err := a.ctrl.AutoRegisterDirectory(cmd.Context(), progress)
			if outputJSON {
				if err != nil {
					return err
				}
				return outputResult(rep, cli.FormatJSON)
			}
			a.flush(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if len(rep.Failed) > 0 {
				tbl := cli.Table{Header: []string{"file", "error"}}
				for _, f := range rep.Failed {
					tbl.Rows = append(tbl.Rows, []string{f.Path, f.Err.Error()})
				}
				if err := outputResult(tbl, cli.FormatTable); err != nil {
					return err
				}
			}
			cli.PrintSuccess("Registered %d of %d file(s) in %s",
				len(rep.Registered), rep.Total, cli.FormatDuration(time.Since(start)))
			return nil
		})
	},
}
