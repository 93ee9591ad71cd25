package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rentflow_backend/internals/configs"
)

const sqlitePrefix = "sqlite://"

// Open connects to PostgreSQL. PreferSimpleProtocol keeps PgBouncer (transaction pooling) happy.
// A DSN of the form sqlite://<file> opens a local SQLite database instead.
func Open(cfg configs.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	if strings.HasPrefix(cfg.DSN, sqlitePrefix) {
		return OpenSQLite(strings.TrimPrefix(cfg.DSN, sqlitePrefix), log)
	}

	log.Info("connecting to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.Name))

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.ConnString(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	log.Info("DB connected")
	return db, nil
}

// OpenSQLite is used for local runs and tests. One connection, so writes serialize.
func OpenSQLite(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         configs.NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return db, nil
}

// TunePool sizes the Postgres pool. SQLite keeps its single connection.
func TunePool(db *gorm.DB, log *zap.Logger) {
	if db.Dialector.Name() == "sqlite" {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("pool tune failed", zap.Error(err))
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
