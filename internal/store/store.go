// Package store persists permit records in a relational database.
//
// SQLite (modernc.org/sqlite) is used for file and in-memory databases and
// PostgreSQL (pgx) for postgres:// URLs. The schema is managed by goose
// migrations embedded in the binary. Each permit is one row in permits, with
// its fees, related permits and inspection tally in child tables that are
// replaced on every save and removed with the permit. Field changes between
// saves are appended to status_history.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a permit or run does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultDSN is the database used when none is configured.
const DefaultDSN = "permits.db"

// Store is a permit database.
type Store struct {
	db      *sql.DB
	dialect goose.Dialect
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// driverFor maps a DSN to a database/sql driver, driver DSN, and dialect.
func driverFor(dsn string) (driver, source string, dialect goose.Dialect) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", dsn, goose.DialectPostgres
	}

	source = strings.TrimPrefix(dsn, "sqlite://")
	if !strings.HasPrefix(source, "file:") {
		source = "file:" + source
	}
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	return "sqlite", source + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", goose.DialectSQLite3
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	driver, source, dialect := driverFor(dsn)

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dialect == goose.DialectSQLite3 {
		// One connection keeps in-memory databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	provider, err := goose.NewProvider(s.dialect, s.db, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug("Applied migration", logger.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration.String(),
		})
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, rolling back when it fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Rollback failed", nil, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
