// Leadscored runs the lead scoring engine as a long-lived process: it loads
// configuration, restores state from the snapshot file, and runs the
// inactivity decay scheduler until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/victor2025PH/tgkz2026-sub006/internal/config"
	"github.com/victor2025PH/tgkz2026-sub006/internal/leadscore"
	"github.com/victor2025PH/tgkz2026-sub006/internal/logging"
	"github.com/victor2025PH/tgkz2026-sub006/internal/snapshot"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "leadscored",
	Short: "Lead scoring engine daemon",
	Long: `leadscored converts customer-interaction events into bounded lead
scores, heat classifications, and per-category breakdowns used to
prioritize sales outreach.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/leadscored/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scoring engine and decay scheduler",
	RunE:  runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("leadscored %s (commit %s, built %s)\n", version, gitCommit, buildDate)
	},
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	engineOpts := []leadscore.Option{leadscore.WithLogger(logger)}
	if cfg.Snapshot.Path != "" {
		store, err := snapshot.NewFileStore(cfg.Snapshot.Path)
		if err != nil {
			return fmt.Errorf("creating snapshot store: %w", err)
		}
		engineOpts = append(engineOpts, leadscore.WithPort(store))
		logger.Info("snapshot persistence enabled", zap.String("path", store.Path()))
	} else {
		logger.Warn("snapshot path empty, running without persistence")
	}

	engine, err := leadscore.New(&leadscore.Config{
		ContactHistoryLimit: cfg.Engine.ContactHistoryLimit,
		GlobalHistoryLimit:  cfg.Engine.GlobalHistoryLimit,
		CategoryWindow:      cfg.Engine.CategoryWindow,
		RateLimitTimezone:   cfg.Engine.RateLimitTimezone,
	}, engineOpts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	scheduler, err := leadscore.NewScheduler(engine, cfg.Decay.CheckInterval.Duration(), logger)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer scheduler.Stop()

	logger.Info("leadscored started",
		zap.String("version", version),
		zap.String("rate_limit_timezone", cfg.Engine.RateLimitTimezone),
		zap.Duration("decay_interval", cfg.Decay.CheckInterval.Duration()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	return nil
}
