// Package db opens the database the application runs on. SQLite is used for
// single node setups and tests, Postgres for everything else.
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bitwise74/drop-api/pkg/util"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrUnsupportedDSN   = errors.New("database dsn must start with postgres://, postgresql:// or sqlite://")
	ErrSqliteNotMounted = errors.New("SQLite database file not mounted, please use docker volumes to mount it")

	// Swapped in tests
	inDocker = util.IsRunningInDocker
)

// gormLogger routes gorm warnings through zap. Missing rows are an expected
// outcome of lookups and are not reported.
func gormLogger() logger.Interface {
	return logger.New(zap.NewStdLog(zap.L()), logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// New opens the database behind dsn, checks that it's reachable and brings
// the schema up to date
func New(ctx context.Context, dsn string) (*gorm.DB, error) {
	dialector, isSqlite, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database, %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle, %w", err)
	}

	if isSqlite {
		// SQLite allows a single writer. Funnelling everything through one
		// connection turns lock contention into queueing.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database, %w", err)
	}

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	zap.L().Debug("Database ready", zap.Bool("sqlite", isSqlite))
	return db, nil
}

// Close releases the connection pool behind db
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func dialectorFor(dsn string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), false, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, false, ErrUnsupportedDSN
		}

		// In a container the file has to come from a volume, otherwise it
		// silently disappears with the container
		if inDocker() {
			file, _, _ := strings.Cut(path, "?")
			if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
				return nil, false, fmt.Errorf("%w at %s", ErrSqliteNotMounted, file)
			}
		}

		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, false, fmt.Errorf("failed to create database directory, %w", err)
			}
		}

		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}

		return sqlite.Open(path + sep + "_foreign_keys=on&_busy_timeout=5000"), true, nil
	default:
		return nil, false, ErrUnsupportedDSN
	}
}
