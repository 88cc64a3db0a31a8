package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zey041022/poem-web-app/internal/config"
	"github.com/zey041022/poem-web-app/internal/logging"
)

var (
	// Global flags
	verbose bool
	console bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "poetry",
	Short: "Turn modern Chinese text into classical poems and ink-wash illustrations",
	Long: `poetry writes a classical Chinese poem for a piece of modern text and
illustrates it with a generated image.

Backends are chosen through the environment (see .env): ModelScope or Gemini
for text, ModelScope or FusionBrain for images.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel, verbose, console)
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded",
			zap.String("text_provider", cfg.Text.Provider),
			zap.String("image_provider", cfg.Image.Provider),
			zap.String("asset_store", cfg.AssetStore))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&console, "console", false, "Human-readable log output instead of JSON")

	pruneCmd.Flags().BoolVar(&pruneOnce, "once", false, "Prune once and exit instead of running on PRUNE_SCHEDULE")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 4, "Maximum number of requests in flight")

	rootCmd.AddCommand(poemCmd, imageCmd, runCmd, batchCmd, pruneCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			if logger != nil {
				logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
