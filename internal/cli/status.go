package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint, record counts and sync progress",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx := context.Background()
	app := newApp(ctx, cfg)
	defer app.Close()

	st, err := app.Status(ctx)
	if err != nil {
		slog.Error("Failed to read status", "error", err)
		app.Close()
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHECKPOINT\tADDRESSES\tFAILED\tRUNNING\tPROGRESS")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%t\t%.2f%%\n",
		st.BlockNumber, st.AddressCount, st.FailedCount, st.Progress.Running, st.Progress.Percent)
	_ = w.Flush()
}
