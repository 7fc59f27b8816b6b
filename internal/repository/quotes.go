package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookings/internal/entities"
)

var ErrQuoteNotFound = fmt.Errorf("quote not found")

// QuotesRepo reads the pricing service's quote cache. Quotes are keyed by
// quote id and expire together with the quote itself.
type QuotesRepo struct {
	rdb *redis.Client
}

func NewQuotesRepo(rdb *redis.Client) *QuotesRepo {
	return &QuotesRepo{rdb: rdb}
}

func quoteKey(quoteID string) string {
	return "quote:" + quoteID
}

func (r *QuotesRepo) Get(ctx context.Context, quoteID string) (entities.Quote, error) {
	var quote entities.Quote

	payload, err := r.rdb.Get(ctx, quoteKey(quoteID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return quote, ErrQuoteNotFound
		}
		return quote, fmt.Errorf("get quote: %w", err)
	}

	if err := json.Unmarshal(payload, &quote); err != nil {
		return quote, fmt.Errorf("unmarshal quote: %w", err)
	}

	return quote, nil
}

func (r *QuotesRepo) Put(ctx context.Context, quote entities.Quote) error {
	payload, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}

	ttl := time.Until(quote.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: quote %s already expired", ErrQuoteNotFound, quote.QuoteID)
	}

	if err := r.rdb.Set(ctx, quoteKey(quote.QuoteID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set quote: %w", err)
	}

	return nil
}
