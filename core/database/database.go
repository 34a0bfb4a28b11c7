package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the sqlite connection string for the configuration.
func DSN(cfg Config) string {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 5
	}

	if cfg.Path == ":memory:" || cfg.Path == "" {
		return fmt.Sprintf("file::memory:?cache=shared&_busy_timeout=%d", timeout*1000)
	}

	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(timeout*1000))
	if cfg.ReadOnly {
		q.Set("mode", "ro")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Connect opens the calibre library database.
// The host application may hold the file open, so the busy timeout applies to
// every statement, and the pool is kept to a single connection.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.Driver != "" && cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	registerDriver()
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: DriverName, DSN: DSN(cfg)}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping library database: %w", err)
	}

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
