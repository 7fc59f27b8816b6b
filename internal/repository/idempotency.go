package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/jmoiron/sqlx"
)

// Scopes of the state-changing entry points.
const (
	ScopeCreateBooking = "createBooking"
)

type CheckResult struct {
	Fresh bool

	// StoredResult is set for duplicates whose first run already completed.
	// A duplicate of a still-running request carries no result.
	StoredResult json.RawMessage
}

// IdempotencyStore maps (scope, key) to the result the first request
// produced. A duplicate within the TTL gets that result back verbatim
// instead of re-running side effects.
type IdempotencyStore struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
	ttl    time.Duration
}

func NewIdempotencyStore(db *sqlx.DB, getter *trmsqlx.CtxGetter, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		db:     db,
		getter: getter,
		ttl:    ttl,
	}
}

func (s *IdempotencyStore) CheckOrReserve(ctx context.Context, scope, key string) (CheckResult, error) {
	now := time.Now().UTC()

	res, err := s.getter.DefaultTrOrDB(ctx, s.db).ExecContext(ctx, `
		INSERT INTO idempotency_keys (scope, key, result, expires_at)
		VALUES ($1, $2, NULL, $3)
		ON CONFLICT (scope, key) DO UPDATE
		SET result = NULL, expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at < $4
	`, scope, key, now.Add(s.ttl), now)
	if err != nil {
		return CheckResult{}, fmt.Errorf("reserve idempotency key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return CheckResult{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		// Inserted fresh, or reclaimed an expired record.
		return CheckResult{Fresh: true}, nil
	}

	var stored json.RawMessage
	err = s.getter.DefaultTrOrDB(ctx, s.db).QueryRowxContext(ctx, `
		SELECT result
		FROM idempotency_keys
		WHERE scope = $1 AND key = $2
	`, scope, key).Scan(&stored)
	if err != nil {
		return CheckResult{}, fmt.Errorf("select idempotency record: %w", err)
	}

	return CheckResult{Fresh: false, StoredResult: stored}, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal idempotency result: %w", err)
	}

	_, err = s.getter.DefaultTrOrDB(ctx, s.db).ExecContext(ctx, `
		UPDATE idempotency_keys
		SET result = $1
		WHERE scope = $2 AND key = $3
	`, payload, scope, key)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}

	return nil
}

// MarkProcessed records an inbound event id for the handler. Returns false
// when the event was seen before, which makes redelivered messages no-ops.
func (s *IdempotencyStore) MarkProcessed(ctx context.Context, handlerName, eventID string) (bool, error) {
	res, err := s.getter.DefaultTrOrDB(ctx, s.db).ExecContext(ctx, `
		INSERT INTO processed_events (handler_name, event_id)
		VALUES ($1, $2)
		ON CONFLICT (handler_name, event_id) DO NOTHING
	`, handlerName, eventID)
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
