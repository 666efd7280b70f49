package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the audit event schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_events (
			event_id UUID PRIMARY KEY,
			correlation_id VARCHAR(100) NOT NULL,
			source_system VARCHAR(100) NOT NULL,
			module_name VARCHAR(100),
			process_name VARCHAR(255),
			source_entity VARCHAR(255),
			destination_entity VARCHAR(255),
			key_identifier VARCHAR(255),
			checkpoint VARCHAR(50) NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL,
			message TEXT,
			details JSONB
		);

		CREATE INDEX IF NOT EXISTS idx_audit_events_correlation
			ON audit_events (correlation_id, event_timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_source_checkpoint
			ON audit_events (source_system, checkpoint);
		CREATE INDEX IF NOT EXISTS idx_audit_events_module_status
			ON audit_events (module_name, status);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp
			ON audit_events (event_timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit event schema: %w", err)
	}

	db.logger.Info("audit event schema initialized")
	return nil
}
