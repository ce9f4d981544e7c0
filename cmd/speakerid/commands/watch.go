package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Enroll reference files as they appear",
	Long: `Watch the reference directory and enroll every matching file when it
is created or rewritten. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		a.startupRegister(ctx, out)
		a.follow(ctx, out)

		w, err := watch.New(a.cfg.ReferencePath(), a.ctrl.RegisterFile, watch.Options{Include: a.cfg.Include})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", a.cfg.ReferencePath())
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
