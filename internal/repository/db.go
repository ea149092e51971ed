package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// retryInterval is the pause between connection attempts.
var retryInterval = 3 * time.Second

// Options configures how the store database is opened.
type Options struct {
	Driver string
	DSN    string
	// OpTimeout bounds every repository call.
	OpTimeout time.Duration
	// ConnectTimeout bounds the whole connection retry loop.
	ConnectTimeout time.Duration
}

// DefaultOptions returns options for a local sqlite file
func DefaultOptions() Options {
	return Options{
		Driver:         DriverSQLite,
		DSN:            "./data/stores.db",
		OpTimeout:      5 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

// OpenerFor returns the opener for a driver name.
func OpenerFor(driver string) (Opener, error) {
	cfg := &gorm.Config{
		Logger: gormlogger.New(logger.Logger, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	switch strings.ToLower(driver) {
	case DriverSQLite:
		return func(dsn string) (*gorm.DB, error) {
			return gorm.Open(sqlite.Open(dsn), cfg)
		}, nil
	case DriverPostgres:
		return func(dsn string) (*gorm.DB, error) {
			return gorm.Open(postgres.Open(dsn), cfg)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// ConnectWithRetry calls opener until it succeeds or timeout elapses.
func ConnectWithRetry(dsn string, timeout time.Duration, opener Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("database connect failed after %s: %w", timeout, err)
		}
		logger.WithError(err).Warn("Database connect failed, retrying")

		wait := retryInterval
		if remaining < wait {
			wait = remaining
		}
		time.Sleep(wait)
	}
}

// Open connects to the configured database, migrates the schema and returns
// a ready StoreRepository. The caller owns it and must Close it.
func Open(opts Options) (StoreRepository, error) {
	opener, err := OpenerFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(opts.Driver)
	if driver == DriverSQLite {
		if err := ensureSQLiteDir(opts.DSN); err != nil {
			return nil, err
		}
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultOptions().ConnectTimeout
	}
	db, err := ConnectWithRetry(opts.DSN, connectTimeout, opener)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection also keeps ":memory:" one database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&StoreRecord{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}

	logger.WithField("driver", driver).Info("Store database ready")

	return NewGormStoreRepository(db, opts.OpTimeout), nil
}

func ensureSQLiteDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
