package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "bookings/internal/domain/bookings"
	"bookings/internal/entities"
	"bookings/internal/repository"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.InitializeDBSchema(db))

	return db
}

func newStoredBooking(t *testing.T, repo *repository.BookingsRepo) *domain.Booking {
	t.Helper()

	booking, err := domain.NewBooking(
		uuid.New(),
		uuid.New(),
		[]entities.RoomSelection{{RoomTypeID: uuid.New(), Quantity: 1}},
		"quote-"+uuid.NewString(),
		uuid.NewString(),
	)
	require.NoError(t, err)
	require.NoError(t, repo.Add(context.Background(), booking))

	return booking
}

func TestBookingsRepoRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := repository.NewBookingsRepo(db, trmsqlx.DefaultCtxGetter)

	booking := newStoredBooking(t, repo)

	stored, err := repo.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, stored.ID)
	assert.Equal(t, domain.StatusDraft, stored.Status)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, booking.QuoteID, stored.QuoteID)

	byKey, err := repo.GetByIdempotencyKey(context.Background(), booking.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, byKey.ID)
}

func TestBookingsRepoGetNotFound(t *testing.T) {
	db := testDB(t)
	repo := repository.NewBookingsRepo(db, trmsqlx.DefaultCtxGetter)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}

func TestBookingsRepoUpdateBumpsVersion(t *testing.T) {
	db := testDB(t)
	repo := repository.NewBookingsRepo(db, trmsqlx.DefaultCtxGetter)

	booking := newStoredBooking(t, repo)

	updated, err := repo.UpdateByID(context.Background(), booking.ID, func(b *domain.Booking) error {
		return b.RequestHold()
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHoldRequested, updated.Status)
	assert.Equal(t, 2, updated.Version)

	stored, err := repo.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestBookingsRepoUpdatePropagatesDomainError(t *testing.T) {
	db := testDB(t)
	repo := repository.NewBookingsRepo(db, trmsqlx.DefaultCtxGetter)

	booking := newStoredBooking(t, repo)

	_, err := repo.UpdateByID(context.Background(), booking.ID, func(b *domain.Booking) error {
		return b.ApplyHoldSucceeded()
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := repo.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, stored.Status)
	assert.Equal(t, 1, stored.Version)
}

func TestBookingsRepoFindStale(t *testing.T) {
	db := testDB(t)
	repo := repository.NewBookingsRepo(db, trmsqlx.DefaultCtxGetter)

	booking := newStoredBooking(t, repo)
	_, err := repo.UpdateByID(context.Background(), booking.ID, func(b *domain.Booking) error {
		return b.RequestHold()
	})
	require.NoError(t, err)

	ids, err := repo.FindStale(context.Background(), domain.StatusHoldRequested, time.Now().UTC().Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Contains(t, ids, booking.ID)

	ids, err = repo.FindStale(context.Background(), domain.StatusHoldRequested, time.Now().UTC().Add(-time.Hour), 100)
	require.NoError(t, err)
	assert.NotContains(t, ids, booking.ID)
}

func TestIdempotencyStoreLifecycle(t *testing.T) {
	db := testDB(t)
	store := repository.NewIdempotencyStore(db, trmsqlx.DefaultCtxGetter, time.Hour)

	key := uuid.NewString()

	check, err := store.CheckOrReserve(context.Background(), repository.ScopeCreateBooking, key)
	require.NoError(t, err)
	assert.True(t, check.Fresh)

	// duplicate while still running carries no result
	check, err = store.CheckOrReserve(context.Background(), repository.ScopeCreateBooking, key)
	require.NoError(t, err)
	assert.False(t, check.Fresh)
	assert.Nil(t, check.StoredResult)

	result := map[string]string{"booking_id": uuid.NewString()}
	require.NoError(t, store.Complete(context.Background(), repository.ScopeCreateBooking, key, result))

	check, err = store.CheckOrReserve(context.Background(), repository.ScopeCreateBooking, key)
	require.NoError(t, err)
	assert.False(t, check.Fresh)
	assert.JSONEq(t, `{"booking_id": "`+result["booking_id"]+`"}`, string(check.StoredResult))
}

func TestIdempotencyStoreReclaimsExpired(t *testing.T) {
	db := testDB(t)
	store := repository.NewIdempotencyStore(db, trmsqlx.DefaultCtxGetter, -time.Minute)

	key := uuid.NewString()

	check, err := store.CheckOrReserve(context.Background(), repository.ScopeCreateBooking, key)
	require.NoError(t, err)
	assert.True(t, check.Fresh)

	// negative TTL makes the record immediately reclaimable
	check, err = store.CheckOrReserve(context.Background(), repository.ScopeCreateBooking, key)
	require.NoError(t, err)
	assert.True(t, check.Fresh)
}

func TestMarkProcessedDeduplicates(t *testing.T) {
	db := testDB(t)
	store := repository.NewIdempotencyStore(db, trmsqlx.DefaultCtxGetter, time.Hour)

	eventID := uuid.NewString()

	fresh, err := store.MarkProcessed(context.Background(), "booking_saga.on_payment_failed", eventID)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(context.Background(), "booking_saga.on_payment_failed", eventID)
	require.NoError(t, err)
	assert.False(t, fresh)

	// same event id for a different handler is independent
	fresh, err = store.MarkProcessed(context.Background(), "booking_saga.on_payment_completed", eventID)
	require.NoError(t, err)
	assert.True(t, fresh)
}
