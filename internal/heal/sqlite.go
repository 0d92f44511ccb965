// internal/heal/sqlite.go
package heal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/scalpel-locator/internal/locator"
)

const (
	sqliteCreateHealed = `
        CREATE TABLE IF NOT EXISTS healed_locators (
            page         TEXT NOT NULL,
            logical_name TEXT NOT NULL,
            entry        TEXT NOT NULL,
            updated_at   TEXT NOT NULL,
            PRIMARY KEY (page, logical_name)
        );
    `
	sqliteSelectHealed = `SELECT logical_name, entry FROM healed_locators WHERE page = ?`
	sqliteDeleteHealed = `DELETE FROM healed_locators WHERE page = ?`
	sqliteInsertHealed = `INSERT INTO healed_locators (page, logical_name, entry, updated_at) VALUES (?, ?, ?, ?)`
)

// SQLiteStore keeps overlays in a local SQLite database, one row per entry.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating when needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteCreateHealed); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create healed_locators table: %w", err)
	}
	return &SQLiteStore{db: db, log: logger.Named("heal_sqlite_store"), now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the page's overlay. Read failures degrade to an empty overlay.
func (s *SQLiteStore) Load(ctx context.Context, page string) (locator.Overlay, error) {
	overlay, err := s.load(ctx, page)
	if err != nil {
		s.log.Warn("Failed to load healed overlay, ignoring it.", zap.String("page", page), zap.Error(err))
		return locator.Overlay{}, nil
	}
	return overlay, nil
}

func (s *SQLiteStore) load(ctx context.Context, page string) (locator.Overlay, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectHealed, page)
	if err != nil {
		return nil, fmt.Errorf("failed to query healed locators: %w", err)
	}
	defer rows.Close()

	overlay := locator.Overlay{}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan healed locator row: %w", err)
		}
		var e locator.Entry
		if err := e.UnmarshalJSON([]byte(raw)); err != nil {
			return nil, fmt.Errorf("failed to decode healed entry %q: %w", name, err)
		}
		overlay[name] = e
	}
	return overlay, rows.Err()
}

// Save replaces every row of the page in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, page string, overlay locator.Overlay) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.ExecContext(ctx, sqliteDeleteHealed, page); err != nil {
		return fmt.Errorf("failed to clear healed locators: %w", err)
	}

	names := make([]string, 0, len(overlay))
	for name := range overlay {
		names = append(names, name)
	}
	sort.Strings(names)
	updatedAt := s.now().UTC().Format(time.RFC3339Nano)
	for _, name := range names {
		raw, err := overlay[name].MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode healed entry %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, sqliteInsertHealed, page, name, string(raw), updatedAt); err != nil {
			return fmt.Errorf("failed to insert healed entry %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Saved healed overlay.", zap.String("page", page), zap.Int("entries", len(overlay)))
	return nil
}
