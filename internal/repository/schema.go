package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func InitializeDBSchema(db *sqlx.DB) error {
	_, err := db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS bookings (
	booking_id UUID PRIMARY KEY,
	idempotency_key VARCHAR(255) NOT NULL UNIQUE,
	status VARCHAR(32) NOT NULL,
	version INTEGER NOT NULL,
	payload JSONB NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("failed to create bookings table: %w", err)
	}

	_, err = db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS idempotency_keys (
	scope VARCHAR(64) NOT NULL,
	key VARCHAR(255) NOT NULL,
	result JSONB,
	expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (scope, key)
);`)
	if err != nil {
		return fmt.Errorf("failed to create idempotency_keys table: %w", err)
	}

	_, err = db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS processed_events (
	handler_name VARCHAR(255) NOT NULL,
	event_id UUID NOT NULL,
	processed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	PRIMARY KEY (handler_name, event_id)
);`)
	if err != nil {
		return fmt.Errorf("failed to create processed_events table: %w", err)
	}

	return nil
}
