package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domain "bookings/internal/domain/bookings"
)

var ErrBookingNotFound = fmt.Errorf("booking not found")
var ErrConcurrentModification = fmt.Errorf("booking modified concurrently")

// How many times UpdateByID re-reads and re-applies on a version conflict
// before giving up.
const maxUpdateAttempts = 5

type BookingsRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewBookingsRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *BookingsRepo {
	return &BookingsRepo{
		db:     db,
		getter: getter,
	}
}

func (r *BookingsRepo) Add(ctx context.Context, booking *domain.Booking) error {
	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		INSERT INTO bookings (booking_id, idempotency_key, status, version, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, booking.ID, booking.IdempotencyKey, booking.Status, booking.Version, payload, booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	return nil
}

func (r *BookingsRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var payload []byte
	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT payload
		FROM bookings
		WHERE booking_id = $1
	`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("select booking: %w", err)
	}

	var booking domain.Booking
	if err := json.Unmarshal(payload, &booking); err != nil {
		return nil, fmt.Errorf("unmarshal booking: %w", err)
	}

	return &booking, nil
}

// UpdateByID applies updateFn to the current state of the booking under
// optimistic concurrency: the UPDATE only matches the version that was read,
// and a lost race re-reads and re-applies. Errors returned by updateFn
// propagate unchanged so callers can react to domain errors.
func (r *BookingsRepo) UpdateByID(
	ctx context.Context,
	id uuid.UUID,
	updateFn func(booking *domain.Booking) error,
) (*domain.Booking, error) {
	var lastErr error

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		booking, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		readVersion := booking.Version

		if err := updateFn(booking); err != nil {
			return nil, err
		}

		booking.Version = readVersion + 1
		booking.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(booking)
		if err != nil {
			return nil, fmt.Errorf("marshal booking: %w", err)
		}

		res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
			UPDATE bookings
			SET status = $1, version = $2, payload = $3, updated_at = $4
			WHERE booking_id = $5 AND version = $6
		`, booking.Status, booking.Version, payload, booking.UpdatedAt, id, readVersion)
		if err != nil {
			return nil, fmt.Errorf("update booking: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 1 {
			return booking, nil
		}

		lastErr = ErrConcurrentModification
	}

	return nil, lastErr
}

func (r *BookingsRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error) {
	var payload []byte
	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT payload
		FROM bookings
		WHERE idempotency_key = $1
	`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("select booking by idempotency key: %w", err)
	}

	var booking domain.Booking
	if err := json.Unmarshal(payload, &booking); err != nil {
		return nil, fmt.Errorf("unmarshal booking: %w", err)
	}

	return &booking, nil
}

// FindStale returns ids of bookings that sat in the given status for longer
// than the deadline. Used by the timeout watchdog to resolve *Requested
// states that never got a collaborator response.
func (r *BookingsRepo) FindStale(
	ctx context.Context,
	status domain.Status,
	olderThan time.Time,
	limit int,
) ([]uuid.UUID, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT booking_id
		FROM bookings
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`, status, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale bookings: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale booking id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
