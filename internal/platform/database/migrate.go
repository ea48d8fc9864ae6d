package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationLockID = GenerateLockID(ApplicationName, "schema_migrations")

// Migration はスキーマ変更1件
type Migration struct {
	Version string
	SQL     string
}

// Migrations は埋め込まれたマイグレーションをバージョン順に返します
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := fs.ReadFile(migrationFiles, "migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(entry.Name(), ".sql"),
			SQL:     string(body),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate は未適用のマイグレーションを順に適用し、適用したバージョンを返します
// 複数プロセスから同時に呼ばれてもアドバイザリロックで直列化されます
func Migrate(ctx context.Context, db TxBeginner, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}

	return Transact(ctx, db, func(tx pgx.Tx) ([]string, error) {
		if err := AcquireXactLock(ctx, tx, migrationLockID); err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
			return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
		}

		applied := make(map[string]bool)
		rows, err := tx.Query(ctx, `SELECT version FROM schema_migrations`)
		if err != nil {
			return nil, fmt.Errorf("failed to list applied migrations: %w", err)
		}
		versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, fmt.Errorf("failed to scan applied migrations: %w", err)
		}
		for _, v := range versions {
			applied[v] = true
		}

		var done []string
		for _, m := range migrations {
			if applied[m.Version] {
				continue
			}
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return nil, fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
				return nil, fmt.Errorf("failed to record migration %s: %w", m.Version, err)
			}
			logger.Info("applied migration", "version", m.Version)
			done = append(done, m.Version)
		}
		return done, nil
	})
}
