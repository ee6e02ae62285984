// migrate applies the embedded schema migrations to DATABASE_URL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"rentcore/internal/config"
	"rentcore/internal/logging"
	"rentcore/migrations"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var envFile string
	var databaseURL string
	var list bool
	var timeout time.Duration

	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flagSet.StringVar(&databaseURL, "database-url", "", "postgres connection string (default: $DATABASE_URL)")
	flagSet.BoolVarP(&list, "list", "l", false, "print the embedded migrations and exit")
	flagSet.DurationVar(&timeout, "timeout", 2*time.Minute, "give up after this long")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if list {
		all, err := config.LoadMigrations(migrations.FS)
		if err != nil {
			return err
		}
		for _, m := range all {
			fmt.Printf("%03d  %s\n", m.Version, m.Name)
		}
		return nil
	}

	_ = godotenv.Load(envFile)
	cfg := config.Load()
	slog.SetDefault(logging.New(cfg.Environment))
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("no database configured: set DATABASE_URL or --database-url")
	}

	db, err := config.NewPostgresDB(cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ran, err := config.RunMigrations(ctx, db, migrations.FS)
	if err != nil {
		return err
	}
	if len(ran) == 0 {
		slog.Info("schema is up to date")
		return nil
	}
	slog.Info("migrations applied", "count", len(ran))
	return nil
}
