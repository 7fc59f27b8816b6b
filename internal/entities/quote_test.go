package entities_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bookings/internal/entities"
)

func TestQuoteExpired(t *testing.T) {
	now := time.Now().UTC()
	quote := entities.Quote{
		QuoteID:     "quote-1",
		PriceAmount: "99.90",
		Currency:    "EUR",
		ExpiresAt:   now.Add(time.Minute),
	}

	assert.False(t, quote.Expired(now))
	assert.True(t, quote.Expired(now.Add(time.Minute)))
	assert.True(t, quote.Expired(now.Add(time.Hour)))
}
