package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "attendctl",
	Short: "Operator tool for the rollcall attendance service",
	Long: `attendctl manages the rollcall database: it applies schema migrations,
imports enrollment descriptors and lists subjects and attendance.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	observability.SetupLogger(cfg.Logging.Level, "text")
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*storage.PostgresStore, error) {
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}
