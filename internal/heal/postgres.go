// internal/heal/postgres.go
package heal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/locator"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	healedTable = "healed_locators"

	sqlCreateHealed = `
        CREATE TABLE IF NOT EXISTS healed_locators (
            page         TEXT        NOT NULL,
            logical_name TEXT        NOT NULL,
            entry        JSONB       NOT NULL,
            updated_at   TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (page, logical_name)
        );
    `
	sqlSelectHealed = `SELECT logical_name, entry FROM healed_locators WHERE page = $1`
	sqlDeleteHealed = `DELETE FROM healed_locators WHERE page = $1`
)

var healedColumns = []string{"page", "logical_name", "entry", "updated_at"}

// PostgresStore keeps overlays as one row per healed entry.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore verifies the connection and makes sure the table exists.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresStore{
		pool: pool,
		log:  logger.Named("heal_pg_store"),
		now:  time.Now,
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects a pool to url and wraps it in a store. The returned
// function closes the pool.
func OpenPostgres(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := NewPostgresStore(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// EnsureSchema creates the healed_locators table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateHealed); err != nil {
		return fmt.Errorf("failed to create %s table: %w", healedTable, err)
	}
	return nil
}

// Load returns the page's overlay. Query failures degrade to an empty overlay.
func (s *PostgresStore) Load(ctx context.Context, page string) (locator.Overlay, error) {
	overlay, err := s.load(ctx, page)
	if err != nil {
		s.log.Warn("Failed to load healed overlay, ignoring it.", zap.String("page", page), zap.Error(err))
		return locator.Overlay{}, nil
	}
	return overlay, nil
}

func (s *PostgresStore) load(ctx context.Context, page string) (locator.Overlay, error) {
	rows, err := s.pool.Query(ctx, sqlSelectHealed, page)
	if err != nil {
		return nil, fmt.Errorf("failed to query healed locators: %w", err)
	}
	defer rows.Close()

	overlay := locator.Overlay{}
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan healed locator row: %w", err)
		}
		var e locator.Entry
		if err := e.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("failed to decode healed entry %q: %w", name, err)
		}
		overlay[name] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating healed locator rows: %w", err)
	}
	return overlay, nil
}

// Save replaces every row of the page in one transaction. An empty overlay
// leaves the page with no rows.
func (s *PostgresStore) Save(ctx context.Context, page string, overlay locator.Overlay) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlDeleteHealed, page); err != nil {
		return fmt.Errorf("failed to clear healed locators: %w", err)
	}

	if len(overlay) > 0 {
		names := make([]string, 0, len(overlay))
		for name := range overlay {
			names = append(names, name)
		}
		sort.Strings(names)

		updatedAt := s.now().UTC()
		rows := make([][]any, 0, len(names))
		for _, name := range names {
			raw, err := overlay[name].MarshalJSON()
			if err != nil {
				return fmt.Errorf("failed to encode healed entry %q: %w", name, err)
			}
			rows = append(rows, []any{page, name, raw, updatedAt})
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{healedTable}, healedColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy healed locators: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("mismatch in copied healed locators count: expected %d, got %d", len(rows), n)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Saved healed overlay.", zap.String("page", page), zap.Int("entries", len(overlay)))
	return nil
}
