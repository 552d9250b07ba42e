// Package database owns the MariaDB and Redis connections used by the
// platform plugins, plus the embedded schema migrations. Connections are
// opened once in cmd/server and injected into repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the "mysql" driver used for MariaDB.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/scribe/internal/config"
)

// pingAttempts bounds how long startup waits for MariaDB.
const pingAttempts = 10

// NewMariaDB opens the posts/profiles/users database and applies the pool
// settings from config. The returned pool has answered at least one ping.
func NewMariaDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithBackoff(db, pingAttempts); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// pingWithBackoff pings until the database answers. MariaDB is often still
// starting when the server container comes up under docker compose.
func pingWithBackoff(db *sql.DB, attempts int) error {
	backoff := time.Second
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		slog.Warn("mariadb not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", lastErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}
	return fmt.Errorf("pinging mariadb after %d attempts: %w", attempts, lastErr)
}
