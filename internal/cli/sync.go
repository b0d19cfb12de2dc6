package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the configured block range and exit",
	Run:   runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg)
	defer app.Close()

	if err := app.Migrate(ctx); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		app.Close()
		os.Exit(1)
	}
	if err := app.Sync(ctx); err != nil {
		slog.Error("Sync failed", "error", err)
		app.Close()
		os.Exit(1)
	}
}
