package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry every block in the failure queue once",
	Run:   runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg)
	defer app.Close()

	res, err := app.Retry(ctx)
	if err != nil {
		slog.Error("Retry failed", "error", err)
		app.Close()
		os.Exit(1)
	}

	slog.Info("Retry finished", "addresses", len(res.Succeeds), "still_failing", len(res.Fails))
	if len(res.Fails) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "BLOCK\tTYPE\tRETRIES\tMESSAGE")
	for _, fb := range res.Fails {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", fb.BlockNumber, fb.FailureType, fb.RetryCount, fb.Message)
	}
	_ = w.Flush()
}
