package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		conditions TEXT[] NOT NULL DEFAULT '{}',
		coins DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (coins >= 0),
		streak INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
		settings JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS medications (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		dosage VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		dose_time VARCHAR(5) NOT NULL,
		frequency VARCHAR(100) NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		chronic BOOLEAN NOT NULL DEFAULT FALSE,
		start_date DATE,
		end_date DATE,
		taken BOOLEAN NOT NULL DEFAULT FALSE,
		missed BOOLEAN NOT NULL DEFAULT FALSE,
		taken_time TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, id),
		CHECK (NOT (taken AND missed))
	)`,
	`CREATE TABLE IF NOT EXISTS vitals (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		reading_date DATE NOT NULL,
		systolic INTEGER,
		diastolic INTEGER,
		glucose INTEGER,
		tsh DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS history_items (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		category VARCHAR(50) NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		value VARCHAR(50) NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		category VARCHAR(50) NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_items_user_category ON history_items(user_id, category)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		operation_type VARCHAR(20) NOT NULL,
		resource_type VARCHAR(50) NOT NULL,
		resource_id TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		ip_address VARCHAR(64) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_time ON audit_logs(user_id, occurred_at DESC)`,
}

// Migrate creates the profile and audit tables if they do not exist
func Migrate(ctx context.Context, databaseURL string, logger *zap.Logger) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("migration statement failed", zap.Error(err), zap.Int("statement", i))
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}

	logger.Info("database schema up to date", zap.Int("statements", len(schema)))
	return nil
}
