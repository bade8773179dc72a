package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration represents a versioned schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_links",
		Up: `
			CREATE TABLE IF NOT EXISTS links (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				url TEXT NOT NULL,
				title TEXT,
				description TEXT,
				image_url TEXT,
				content_type TEXT,
				estimated_reading_time INTEGER,
				word_count INTEGER,
				is_archived BOOLEAN NOT NULL DEFAULT FALSE,
				archived_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS idx_links_user_created
				ON links (user_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_links_user_archived
				ON links (user_id) WHERE is_archived;
		`,
		Down: `DROP TABLE IF EXISTS links;`,
	},
	{
		Version: 2,
		Name:    "create_categories",
		Up: `
			CREATE TABLE IF NOT EXISTS categories (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				color TEXT,
				icon TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			-- Lookup index only: (user_id, name) uniqueness is enforced in the
			-- upsert path with a case-sensitive compare, not by constraint.
			CREATE INDEX IF NOT EXISTS idx_categories_user_name
				ON categories (user_id, name);
		`,
		Down: `DROP TABLE IF EXISTS categories;`,
	},
	{
		Version: 3,
		Name:    "create_link_categories",
		Up: `
			CREATE TABLE IF NOT EXISTS link_categories (
				id UUID PRIMARY KEY,
				link_id UUID NOT NULL REFERENCES links (id) ON DELETE CASCADE,
				category_id UUID NOT NULL REFERENCES categories (id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS idx_link_categories_link
				ON link_categories (link_id);
			CREATE INDEX IF NOT EXISTS idx_link_categories_category
				ON link_categories (category_id);
		`,
		Down: `DROP TABLE IF EXISTS link_categories;`,
	},
}

// Migrate runs all pending migrations against the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	for _, m := range sorted {
		if m.Version <= currentVersion {
			continue
		}
		if err := runMigration(ctx, pool, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func getCurrentVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var version int
	err := pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, m.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit(ctx)
}

// Rollback undoes the most recently applied migration.
func Rollback(ctx context.Context, pool *pgxpool.Pool) error {
	currentVersion, err := getCurrentVersion(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var target *Migration
	for i := range migrations {
		if migrations[i].Version == currentVersion {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, target.Down); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit(ctx)
}
