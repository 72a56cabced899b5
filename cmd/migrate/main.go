package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"time"

	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/migrations"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name       varchar(255) PRIMARY KEY,
	applied_at timestamptz  NOT NULL DEFAULT now()
)`

func main() {
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	files, err := fs.Glob(migrations.Postgres, "postgres/*.sql")
	if err != nil {
		logger.Fatalw("Failed to list migrations", "error", err)
	}
	sort.Strings(files)

	if *dryRun {
		logger.Info("Dry run mode - printing migration SQL without executing")
		for _, name := range files {
			body, err := migrations.Postgres.ReadFile(name)
			if err != nil {
				logger.Fatalw("Failed to read migration", "file", name, "error", err)
			}
			fmt.Fprintf(os.Stdout, "-- %s\n%s\n", name, body)
		}
		return
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		logger.Fatalw("Failed to create migrations table", "error", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT name FROM schema_migrations`); err != nil {
		logger.Fatalw("Failed to read applied migrations", "error", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	logger.Info("Running database migrations...")
	for _, name := range files {
		if done[name] {
			continue
		}
		if err := apply(ctx, db, name); err != nil {
			logger.Fatalw("Failed to apply migration", "file", name, "error", err)
		}
		logger.Infow("applied migration", "file", name)
	}

	logger.Info("Migration completed successfully")
}

// apply runs one file and records it in the same transaction
func apply(ctx context.Context, db *sqlx.DB, name string) error {
	body, err := migrations.Postgres.ReadFile(name)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
