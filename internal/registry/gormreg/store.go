// Package gormreg is the relational Registry backend: SQLite (via the
// modernc pure-Go driver, no CGO) for local development and PostgreSQL for
// production, with schema applied through embedded golang-migrate SQL
// files. Adapted from the teacher's internal/db + internal/repositories/job.go.
package gormreg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// modernc pure-Go SQLite driver — no CGO required. Registers itself as
	// "sqlite" in database/sql.
	_ "modernc.org/sqlite"

	"github.com/vizsched/vizsched/internal/job"
	"github.com/vizsched/vizsched/internal/registry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds the configuration required to open a registry connection.
// Driver defaults to "sqlite" if left empty.
type Config struct {
	Driver   string // "sqlite" or "postgres"
	DSN      string
	Logger   *zap.Logger
	LogLevel gormlogger.LogLevel
}

// Store is the GORM-backed Registry implementation.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// New opens a database connection and applies pending migrations.
// EnsureSchema must still be called (or relied on here) before first use;
// New already runs migrations, so EnsureSchema is a no-op by the time the
// caller invokes it — kept for interface symmetry with dynamoreg, whose
// schema has no migration tool of its own.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("gormreg: logger is required")
	}

	gormCfg := &gorm.Config{
		Logger: newZapGORMLogger(cfg.Logger, cfg.LogLevel),
	}

	var (
		database *gorm.DB
		sqlDB    *sql.DB
		err      error
		drvName  string
	)

	switch cfg.Driver {
	case "sqlite", "":
		// Open manually via database/sql using the modernc driver, then hand
		// the existing *sql.DB to GORM so it doesn't open a second connection
		// with go-sqlite3 (which requires CGO).
		sqlDB, err = sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("gormreg: open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1) // SQLite supports only one writer at a time.

		database, err = gorm.Open(gormsqlite.Dialector{Conn: sqlDB}, gormCfg)
		if err != nil {
			return nil, fmt.Errorf("gormreg: init gorm with sqlite: %w", err)
		}
		drvName = "sqlite"

	case "postgres":
		database, err = gorm.Open(gormpostgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("gormreg: open postgres: %w", err)
		}
		sqlDB, err = database.DB()
		if err != nil {
			return nil, fmt.Errorf("gormreg: get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		drvName = "postgres"

	default:
		return nil, fmt.Errorf("gormreg: unsupported driver %q, use \"sqlite\" or \"postgres\"", cfg.Driver)
	}

	if err := runMigrations(sqlDB, drvName, cfg.Logger); err != nil {
		return nil, fmt.Errorf("gormreg: migrations failed: %w", err)
	}

	return &Store{db: database, sqlDB: sqlDB}, nil
}

func runMigrations(sqlDB *sql.DB, driver string, log *zap.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	var m *migrate.Migrate

	switch driver {
	case "sqlite":
		drv, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("failed to create sqlite migrate driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite", drv)
		if err != nil {
			return fmt.Errorf("failed to create migrator: %w", err)
		}
	case "postgres":
		drv, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
		if err != nil {
			return fmt.Errorf("failed to create postgres migrate driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", drv)
		if err != nil {
			return fmt.Errorf("failed to create migrator: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("registry migrations applied successfully")
	return nil
}

// EnsureSchema is a no-op: New already applies migrations eagerly. Present
// to satisfy registry.Registry.
func (s *Store) EnsureSchema(_ context.Context) error { return nil }

func toRow(j job.Job) jobRow {
	return jobRow{ID: j.ID, User: j.User, StartTime: j.StartTime, EndTime: j.EndTime, Host: j.Host}
}

func fromRow(r jobRow) job.Job {
	return job.Job{ID: r.ID, User: r.User, StartTime: r.StartTime, EndTime: r.EndTime, Host: r.Host}
}

// Insert durably persists a new job row. Returns registry.ErrConflict if the
// id already exists (invariant 1).
func (s *Store) Insert(ctx context.Context, j job.Job) error {
	row := toRow(j)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return registry.ErrConflict
		}
		return fmt.Errorf("gormreg: insert: %w", err)
	}
	return nil
}

// FetchByID retrieves a job by id. Returns registry.ErrNotFound if absent.
func (s *Store) FetchByID(ctx context.Context, id string) (job.Job, error) {
	var row jobRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return job.Job{}, registry.ErrNotFound
		}
		return job.Job{}, fmt.Errorf("gormreg: fetch by id: %w", err)
	}
	return fromRow(row), nil
}

// ScanAll returns every row in the table, used only by the reaper.
func (s *Store) ScanAll(ctx context.Context) ([]job.Job, error) {
	var rows []jobRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormreg: scan all: %w", err)
	}
	jobs := make([]job.Job, len(rows))
	for i, r := range rows {
		jobs[i] = fromRow(r)
	}
	return jobs, nil
}

// UpdateHost sets the hostname column for id. Idempotent by design —
// writing the same value twice is not an error.
func (s *Store) UpdateHost(ctx context.Context, id, host string) error {
	result := s.db.WithContext(ctx).
		Model(&jobRow{}).
		Where("id = ?", id).
		Update("hostname", host)
	if result.Error != nil {
		return fmt.Errorf("gormreg: update host: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// Delete removes the row for id. Returns registry.ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&jobRow{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("gormreg: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// isUniqueViolation heuristically detects a unique-constraint violation
// across sqlite and postgres error message shapes — GORM does not
// normalize driver errors into a single sentinel.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
