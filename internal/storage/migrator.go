package storage

import (
	"database/sql"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/assets"
)

const migrationsDir = "migrations"

// runMigrations applies embedded migrations not yet recorded in schema_migrations, in name order.
func runMigrations(db *sql.DB) error {
	const migrationTableSchema = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME
	);`

	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}

	for _, file := range pending {
		log.Info().Str("file", file).Msg("Applying database migration...")
		if err := applyMigration(db, file); err != nil {
			return err
		}
	}

	return nil
}

func appliedMigrations(db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}

	return applied, rows.Err()
}

func pendingMigrations(applied map[string]struct{}) ([]string, error) {
	entries, err := assets.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if _, ok := applied[name]; ok {
			continue
		}
		files = append(files, name)
	}
	slices.Sort(files)

	return files, nil
}

// applyMigration executes one file and records it in the same transaction.
func applyMigration(db *sql.DB, file string) error {
	content, err := assets.ReadFile(path.Join(migrationsDir, file))
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", file, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to exec migration %s: %w", file, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", file, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", file, err)
	}

	return tx.Commit()
}
