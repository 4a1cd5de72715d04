// Package enrollmentdb implements the teacher/enrollment store on gorm.
// It is a separate database from the student store with its own pool,
// schema migrations and error domain.
package enrollmentdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds the enrollment store connection settings.
type Config struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	LogQueries         bool
	SlowQueryThreshold time.Duration
}

// DB is the enrollment store connection.
type DB struct {
	gorm *gorm.DB
	sql  *sql.DB
}

// Open prepares the connection pool. Nothing is dialed until the first
// query, so an unreachable server does not fail startup. Reachability is
// checked with Ping.
func Open(cfg Config, logger *zap.Logger) (*DB, error) {
	level := gormlogger.Warn
	if cfg.LogQueries {
		level = gormlogger.Info
	}
	slow := cfg.SlowQueryThreshold
	if slow <= 0 {
		slow = 500 * time.Millisecond
	}

	gdb, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger:               newGormLogger(logger, level, slow),
		TranslateError:       true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("enrollmentdb: failed to open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("enrollmentdb: failed to get sql.DB: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("enrollment store pool configured",
		zap.Int("max_open_conns", maxOpen),
		zap.Int("max_idle_conns", maxIdle),
	)

	return &DB{gorm: gdb, sql: sqlDB}, nil
}

// Gorm returns the gorm handle.
func (d *DB) Gorm() *gorm.DB { return d.gorm }

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Migrate applies the embedded schema migrations.
func (d *DB) Migrate(logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("enrollmentdb: load migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(d.sql, &migratepg.Config{
		MigrationsTable: "enrollment_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("enrollmentdb: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("enrollmentdb: init migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("enrollmentdb: apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	if dirty {
		logger.Warn("enrollment store migration is dirty", zap.Uint("version", version))
	} else {
		logger.Info("enrollment store migrated", zap.Uint("version", version))
	}

	return nil
}
