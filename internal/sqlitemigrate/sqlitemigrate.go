// Package sqlitemigrate applies embedded SQL migrations to a SQLite handle.
//
// Files are applied in lexical order, each at most once. The name of every
// applied file is recorded in the schema_migrations table together with the
// time it was applied. Only the "-- +migrate Up" section of a file runs.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	table      = "schema_migrations"
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// Apply runs every pending *.sql file found under root in fsys.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS, root string) ([]string, error) {
	if db == nil {
		return nil, errors.New("sqlitemigrate: sql db is required")
	}
	files, err := List(fsys, root)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return nil, fmt.Errorf("sqlitemigrate: ensure %s: %w", table, err)
	}

	var applied []string
	for _, name := range files {
		done, err := isApplied(ctx, db, name)
		if err != nil {
			return applied, fmt.Errorf("sqlitemigrate: check %s: %w", name, err)
		}
		if done {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, fmt.Errorf("sqlitemigrate: read %s: %w", name, err)
		}
		if err := applyOne(ctx, db, name, UpSection(string(content))); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// List returns the migration file paths under root in application order.
func List(fsys fs.FS, root string) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("sqlitemigrate: read dir %s: %w", root, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, path.Join(root, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func applyOne(ctx context.Context, db *sql.DB, name, up string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitemigrate: begin %s: %w", name, err)
	}
	if strings.TrimSpace(up) != "" {
		if _, err := tx.ExecContext(ctx, up); err != nil && !IsAlreadyExists(err) {
			_ = tx.Rollback()
			return fmt.Errorf("sqlitemigrate: exec %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+table+` (name, applied_at) VALUES (?, ?)`,
		name, time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlitemigrate: record %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitemigrate: commit %s: %w", name, err)
	}
	return nil
}

// UpSection returns the SQL between the Up and Down markers. A file without
// an Up marker is returned whole.
func UpSection(content string) string {
	i := strings.Index(content, upMarker)
	if i < 0 {
		return content
	}
	content = content[i+len(upMarker):]
	if j := strings.Index(content, downMarker); j >= 0 {
		content = content[:j]
	}
	return content
}

// IsAlreadyExists reports whether err came from DDL that had already been
// applied by hand.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
