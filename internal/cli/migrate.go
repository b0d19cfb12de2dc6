package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx := context.Background()
	app := newApp(ctx, cfg)
	defer app.Close()

	if err := app.Migrate(ctx); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("Migrations applied")
}
