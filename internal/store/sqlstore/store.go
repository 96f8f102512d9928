// Package sqlstore persists orders, entitlements and the catalog view in
// Postgres or SQLite behind one set of queries.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fjod/templateshop/internal/store/sqlstore/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	migrationsTable = "templateshop_schema_migrations"
)

type Store struct {
	db     *sqlx.DB
	driver string
	dsn    string
	now    func() time.Time
}

// Open connects to the database and pings it. Call Migrate before first use.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required")
	}
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	switch driver {
	case DriverSQLite:
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	}

	return &Store{db: db, driver: driver, dsn: dsn, now: utcNow}, nil
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, driver: db.DriverName(), now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Migrate applies the embedded migrations for the store's dialect on a
// dedicated connection.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrations.FS, s.driver)
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	conn, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("could not open migration connection: %w", err)
	}

	var m *migrate.Migrate
	switch s.driver {
	case DriverPostgres:
		driver, derr := migratepostgres.WithInstance(conn, &migratepostgres.Config{MigrationsTable: migrationsTable})
		if derr != nil {
			_ = conn.Close()
			return fmt.Errorf("could not create migration driver: %w", derr)
		}
		m, err = migrate.NewWithInstance("iofs", src, s.driver, driver)
	case DriverSQLite:
		driver, derr := migratesqlite.WithInstance(conn, &migratesqlite.Config{MigrationsTable: migrationsTable})
		if derr != nil {
			_ = conn.Close()
			return fmt.Errorf("could not create migration driver: %w", derr)
		}
		m, err = migrate.NewWithInstance("iofs", src, s.driver, driver)
	default:
		_ = conn.Close()
		return fmt.Errorf("unsupported driver %q", s.driver)
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
