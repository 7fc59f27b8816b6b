package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"bookings/internal/entities"
	"bookings/internal/repository"
)

type QuotesRepository interface {
	Put(ctx context.Context, quote entities.Quote) error
}

type StoreQuoteRequest struct {
	PriceAmount string    `json:"price_amount"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) StoreQuoteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var request StoreQuoteRequest
	err := c.Bind(&request)
	if err != nil {
		return err
	}

	err = s.quotesRepo.Put(ctx, entities.Quote{
		QuoteID:     c.Param("id"),
		PriceAmount: request.PriceAmount,
		Currency:    request.Currency,
		ExpiresAt:   request.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "quote already expired")
		}
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
