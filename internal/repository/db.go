package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"memoryping/internal/model"
)

// NewDB opens a SQLite database and runs migrations. An unreadable
// database file is moved aside and replaced with a fresh one: the
// service must start even with no usable prior state.
func NewDB(dsn string, zlog zerolog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "memoryping.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(zlog, "", 0),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := openAndMigrate(dsn, dbLogger)
	if err != nil {
		path := sqliteFilePath(dsn)
		if path == "" {
			return nil, err
		}
		zlog.Warn().Err(err).Str("path", path).Msg("database unreadable, starting empty")
		if mvErr := os.Rename(path, path+".corrupt"); mvErr != nil && !os.IsNotExist(mvErr) {
			return nil, fmt.Errorf("move corrupt db aside: %w", mvErr)
		}
		db, err = openAndMigrate(dsn, dbLogger)
	}
	if err != nil {
		return nil, err
	}

	return db, nil
}

func openAndMigrate(dsn string, dbLogger logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&model.Reminder{}, &model.UserProfile{}, &model.Counters{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	path := sqliteFilePath(dsn)
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

// sqliteFilePath extracts the on-disk file from a DSN, or "" for
// in-memory databases.
func sqliteFilePath(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	clean := strings.TrimPrefix(dsn, "file:")
	return strings.Split(clean, "?")[0]
}
