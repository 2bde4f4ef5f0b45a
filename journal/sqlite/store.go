// Package sqlite persists the audit journal in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"xdao.co/trustchain/internal/sqlitemigrate"
	"xdao.co/trustchain/journal"
	"xdao.co/trustchain/journal/sqlite/migrations"
)

// ErrDuplicateEntry is returned when an entry id was already appended.
var ErrDuplicateEntry = errors.New("journal entry already exists")

// Store is a journal.Journal backed by the audit_logs table.
type Store struct {
	db *sql.DB
}

var _ journal.Journal = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// embedded schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(ctx, db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts e. Sequence numbers are assigned inside the insert so List
// preserves append order even when timestamps tie.
func (s *Store) Append(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		return fmt.Errorf("journal entry id is required")
	}
	if strings.TrimSpace(e.Action) == "" {
		return fmt.Errorf("journal action is required")
	}
	var detail sql.NullString
	if len(e.Detail) > 0 {
		detail = sql.NullString{String: string(e.Detail), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_logs (id, seq, action, actor, target, detail, at)
VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_logs), ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Action, e.Actor, e.Target, detail, e.At.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
		}
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT id, action, actor, target, detail, at FROM audit_logs`
	var (
		where []string
		args  []any
	)
	if f.Target != "" {
		where = append(where, "target = ?")
		args = append(args, f.Target)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at, seq"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var (
			id     string
			e      journal.Entry
			detail sql.NullString
			at     int64
		)
		if err := rows.Scan(&id, &e.Action, &e.Actor, &e.Target, &detail, &at); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse journal id %q: %w", id, err)
		}
		if detail.Valid {
			e.Detail = []byte(detail.String)
		}
		e.At = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
