package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and WebSocket API",
	Long: `Serve the controller over HTTP. JSON endpoints live under /api and
/ws streams the activity log. Threshold changes made through the API are
saved to the config file.

Example:
  speakerid serve --addr 127.0.0.1:8765`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return fmt.Errorf("failed to read 'addr' flag: %w", err)
		}
		if addr == "" {
			addr = getConfig().Server.Addr
		}
		if addr == "" {
			addr = server.DefaultAddr
		}

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

		srv := server.New(a.ctrl, server.Options{
			OnThreshold: persistThreshold,
			Logger:      slog.Default(),
		})
		fmt.Fprintf(out, "Serving on http://%s (Ctrl+C to stop)\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

// persistThreshold saves an accepted threshold to the config file.
func persistThreshold(v float64) error {
	return getConfig().Set("threshold", strconv.FormatFloat(v, 'f', -1, 64))
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config server.addr)")
}
