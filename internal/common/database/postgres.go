// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"loan-intake/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Schema creates the loan tables if they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS loan_applications (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL,
	priority            TEXT NOT NULL,
	sections            JSONB NOT NULL DEFAULT '{}'::jsonb,
	completion          JSONB NOT NULL DEFAULT '{}'::jsonb,
	has_partner         BOOLEAN NOT NULL DEFAULT FALSE,
	is_business_owner   BOOLEAN NOT NULL DEFAULT FALSE,
	document_progress   INTEGER NOT NULL DEFAULT 0,
	selected_offer_id   TEXT,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS loan_application_timeline (
	id              BIGSERIAL PRIMARY KEY,
	application_id  TEXT NOT NULL REFERENCES loan_applications(id) ON DELETE CASCADE,
	status          TEXT NOT NULL,
	description     TEXT NOT NULL,
	actor           TEXT NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS loan_application_files (
	id                   TEXT PRIMARY KEY,
	application_id       TEXT NOT NULL REFERENCES loan_applications(id) ON DELETE CASCADE,
	document_id          TEXT NOT NULL,
	name                 TEXT NOT NULL,
	size                 BIGINT NOT NULL,
	content_type         TEXT NOT NULL,
	url                  TEXT NOT NULL,
	storage_key          TEXT NOT NULL,
	verification_status  TEXT NOT NULL DEFAULT 'pending',
	signature_required   BOOLEAN NOT NULL DEFAULT FALSE,
	uploaded_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loan_files_application ON loan_application_files(application_id);
CREATE INDEX IF NOT EXISTS idx_loan_timeline_application ON loan_application_timeline(application_id);
`

// Migrate applies Schema.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
