package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/internal/entities"
	"bookings/internal/repository"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestQuotesRepoRoundTrip(t *testing.T) {
	repo := repository.NewQuotesRepo(testRedis(t))

	quote := entities.Quote{
		QuoteID:     uuid.NewString(),
		PriceAmount: "240.00",
		Currency:    "EUR",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, repo.Put(context.Background(), quote))

	stored, err := repo.Get(context.Background(), quote.QuoteID)
	require.NoError(t, err)
	assert.Equal(t, quote.PriceAmount, stored.PriceAmount)
	assert.Equal(t, quote.Currency, stored.Currency)
	assert.WithinDuration(t, quote.ExpiresAt, stored.ExpiresAt, time.Second)
}

func TestQuotesRepoMissingQuote(t *testing.T) {
	repo := repository.NewQuotesRepo(testRedis(t))

	_, err := repo.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrQuoteNotFound)
}

func TestQuotesRepoRejectsExpiredQuote(t *testing.T) {
	repo := repository.NewQuotesRepo(testRedis(t))

	err := repo.Put(context.Background(), entities.Quote{
		QuoteID:   uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	assert.ErrorIs(t, err, repository.ErrQuoteNotFound)
}
