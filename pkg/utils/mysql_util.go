package utils

import (
	"context"
	"database/sql"
	"fmt"

	"fanzone/internal/config"
	"fanzone/pkg/logger"

	_ "github.com/go-sql-driver/mysql"
)

// InitializeMysql opens the pool described by cfg and checks it answers.
func InitializeMysql(ctx context.Context, cfg config.MySQLConfig, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	log.Info("Connected to MySQL")
	return db, nil
}
