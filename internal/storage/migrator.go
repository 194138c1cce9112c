package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamestat/assets"
)

const migrationsDir = "migrations"

const migrationTableSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at DATETIME NOT NULL
);`

// pendingMigrations lists embedded .sql files in lexical order.
func pendingMigrations() ([]string, error) {
	entries, err := assets.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", migrationsDir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)

	return files, nil
}

// runMigrations applies embedded migrations not yet recorded in
// schema_migrations and returns how many were applied.
func runMigrations(db *sql.DB) (int, error) {
	if _, err := db.Exec(migrationTableSchema); err != nil {
		return 0, fmt.Errorf("create migration table: %w", err)
	}

	files, err := pendingMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, file := range files {
		var one int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", file).Scan(&one)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return applied, fmt.Errorf("check migration %s: %w", file, err)
		}

		log.Info().Str("file", file).Msg("Applying database migration...")
		if err := applyMigration(db, file); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

func applyMigration(db *sql.DB, file string) error {
	content, err := assets.ReadFile(path.Join(migrationsDir, file))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("exec migration %s: %w", file, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		file, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}

	return tx.Commit()
}
