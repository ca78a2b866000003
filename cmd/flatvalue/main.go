package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/flatvalue/internal/config"
	"github.com/rewired-gh/flatvalue/internal/logger"
)

const asOfLayout = "2006-01-02"

var (
	configPath string
	asOfFlag   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flatvalue",
		Short:         "Resale flat undervaluation scoring",
		Long:          `Fetches public resale flat transactions, compares each sale against its comparable cohort and reports undervalued listings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file (empty for defaults and environment only)")
	rootCmd.PersistentFlags().StringVar(&asOfFlag, "as-of", "", "Reference date YYYY-MM-DD for lease and fetch window (default today, UTC)")

	rootCmd.AddCommand(createFetchCmd())
	rootCmd.AddCommand(createScoreCmd())
	rootCmd.AddCommand(createRunCmd())

	return rootCmd
}

// setup loads .env, configuration and logging shared by every subcommand.
func setup() (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %q", configPath)

	asOf := time.Now().UTC()
	if asOfFlag != "" {
		asOf, err = time.Parse(asOfLayout, asOfFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --as-of %q: %w", asOfFlag, err)
		}
	}

	return newApp(cfg, asOf), nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runWithApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		if err := fn(ctx, a); err != nil {
			logger.Error("%s failed: %v", cmd.Name(), err)
			return err
		}
		return nil
	}
}

func createFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download recent transactions into the local cache",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, a *app) error {
			_, err := a.fetch(ctx)
			return err
		}),
	}
}

func createScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score cached transactions and write reports",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, a *app) error {
			txns, err := a.cachedTransactions()
			if err != nil {
				return err
			}
			_, err = a.score(ctx, txns)
			return err
		}),
	}
}

func createRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch when the cache is missing or stale, then score",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, a *app) error {
			txns, err := a.transactions(ctx)
			if err != nil {
				return err
			}
			_, err = a.score(ctx, txns)
			return err
		}),
	}
}
