package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry maps training.kv_entries.
type Entry struct {
	Namespace string          `gorm:"column:namespace;type:text;primaryKey"`
	Key       string          `gorm:"column:key;type:text;primaryKey"`
	Value     json.RawMessage `gorm:"column:value;type:jsonb;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Entry) TableName() string { return "training.kv_entries" }

// PostgresOptions configures the Postgres-backed store.
type PostgresOptions struct {
	DatabaseURL string
	Namespace   string
	MinConns    int32
	MaxConns    int32
	LogLevel    string
	Environment string
}

// Postgres is a Store backed by a Postgres kv table through gorm.
type Postgres struct {
	gdb       *gorm.DB
	sqlDB     *sql.DB
	namespace string
}

// NewPostgres opens the database, tunes the connection pool, and ensures the
// kv schema exists.
func NewPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	if strings.TrimSpace(opts.DatabaseURL) == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	namespace := strings.TrimSpace(opts.Namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}

	gdb, err := gorm.Open(postgres.Open(opts.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(resolveGormLogLevel(opts.LogLevel, opts.Environment)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}

	maxOpen := int(opts.MaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(opts.MinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Postgres{
		gdb:       gdb,
		sqlDB:     sqlDB,
		namespace: namespace,
	}
	if err := store.autoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate kv schema: %w", err)
	}

	return store, nil
}

func (s *Postgres) autoMigrate(ctx context.Context) error {
	if err := s.gdb.WithContext(ctx).Exec(`CREATE SCHEMA IF NOT EXISTS training`).Error; err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := s.gdb.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("gorm auto-migrate models: %w", err)
	}
	return nil
}

// Get returns the stored value, or (nil, nil) when the key is absent.
func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.gdb == nil {
		return nil, fmt.Errorf("kv store is not initialized")
	}

	const q = `
SELECT e.value
FROM training.kv_entries e
WHERE e.namespace = $1
  AND e.key = $2
LIMIT 1
`

	var value json.RawMessage
	row := s.gdb.WithContext(ctx).Raw(q, s.namespace, key).Row()
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query kv entry: %w", err)
	}
	return value, nil
}

// Put upserts the value for key.
func (s *Postgres) Put(ctx context.Context, key string, value []byte) error {
	if s == nil || s.gdb == nil {
		return fmt.Errorf("kv store is not initialized")
	}

	const q = `
INSERT INTO training.kv_entries (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key)
DO UPDATE SET
	value = EXCLUDED.value,
	updated_at = now()
`

	if err := s.gdb.WithContext(ctx).Exec(q, s.namespace, key, json.RawMessage(value)).Error; err != nil {
		return fmt.Errorf("upsert kv entry: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("kv store is not initialized")
	}
	return s.sqlDB.PingContext(ctx)
}

func (s *Postgres) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	level := strings.ToLower(strings.TrimSpace(appLogLevel))
	switch level {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
