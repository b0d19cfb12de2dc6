package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/addrindex/internal/control"
	"github.com/vietddude/addrindex/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "addrindex",
	Short: "Bitcoin address balance indexer",
	Long:  `addrindex walks a Bitcoin block range, records every address it sees with its balance and serves the result over HTTP.`,
	Run:   runServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the API and sync the configured block range",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(runCmd)
}

// setup loads the configuration and installs the logger.
func setup() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

// newApp builds the application or exits.
func newApp(ctx context.Context, cfg *config.AppConfig) *control.App {
	app, err := control.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	return app
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg)
	defer app.Close()

	slog.Info("addrindex started", "config", cfgPath, "mode", cfg.Sync.Mode, "port", cfg.Server.Port)

	if err := app.Serve(ctx); err != nil {
		slog.Error("Server stopped", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("Shut down")
}
