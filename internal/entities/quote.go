package entities

import "time"

// Quote is owned by the pricing service; we only cache and validate it.
type Quote struct {
	QuoteID     string    `json:"quote_id"`
	PriceAmount string    `json:"price_amount"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (q Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.After(now)
}
