package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dental-clinic-server/internal/app"
	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/logger"
	"dental-clinic-server/internal/models"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "dental-clinic-server",
		Short:         "Dental clinic API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads .env, reads and validates the config and builds the logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)
	if envErr != nil {
		if errors.Is(envErr, fs.ErrNotExist) {
			log.Warn().Msg("no .env file found, using process environment")
		} else {
			return nil, log, fmt.Errorf("load .env: %w", envErr)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	var withRelay bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenStore(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					log.Error().Err(err).Msg("close store")
				}
			}()

			ctx, stop := signalContext()
			defer stop()
			return app.Serve(ctx, cfg, store, log, app.NewMetrics(), withRelay)
		},
	}
	cmd.Flags().BoolVar(&withRelay, "relay", true, "Run the outbox relay in the same process")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				return errors.New("nothing to migrate for the memory driver")
			}
			db, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.Database.Driver).Int("tables", len(models.All())).Msg("migration complete")
			return nil
		},
	}
}

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Publish pending outbox events to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				return errors.New("the standalone relay needs a shared database; use serve --relay with the memory driver")
			}
			store, closeStore, err := app.OpenStore(cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signalContext()
			defer stop()
			if err := app.RunRelay(ctx, cfg, store, log, app.NewMetrics()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
