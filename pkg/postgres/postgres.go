package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/cmwillett/wapiti-sub000/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS task_reminders (
			id SERIAL PRIMARY KEY,
			owner_id TEXT NOT NULL,
			text TEXT NOT NULL,
			remind_at TIMESTAMPTZ NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		// The unique constraint is the store-level guarantee behind the
		// reconciler: duplicate rows per (owner, endpoint) cannot exist
		// regardless of application bugs.
		`CREATE TABLE IF NOT EXISTS device_registrations (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			p256dh_key TEXT NOT NULL,
			auth_key TEXT NOT NULL,
			device_label TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			last_used_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (owner_id, endpoint)
		)`,

		`CREATE TABLE IF NOT EXISTS channel_preferences (
			owner_id TEXT PRIMARY KEY,
			channel TEXT NOT NULL DEFAULT 'push'
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_task_reminders_owner_id ON task_reminders(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_task_reminders_due ON task_reminders(remind_at) WHERE NOT acknowledged AND NOT completed`,
		`CREATE INDEX IF NOT EXISTS idx_device_registrations_owner_id ON device_registrations(owner_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
