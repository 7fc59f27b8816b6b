package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bookings/internal/application/usecases/booking"
	domain "bookings/internal/domain/bookings"
	"bookings/internal/entities"
)

type CreateBookingRequest struct {
	HotelID        uuid.UUID                `json:"hotel_id"`
	RoomSelections []entities.RoomSelection `json:"room_selections"`
	QuoteID        string                   `json:"quote_id"`
	IdempotencyKey string                   `json:"idempotency_key"`
}

type CreateBookingResponse struct {
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
}

func (s *Server) CreateBookingHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var request CreateBookingRequest
	err := c.Bind(&request)
	if err != nil {
		return err
	}

	res, err := s.bookingsService.CreateBooking(ctx, booking.CreateBookingReq{
		HotelID:        request.HotelID,
		RoomSelections: request.RoomSelections,
		QuoteID:        request.QuoteID,
		IdempotencyKey: request.IdempotencyKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQuoteExpired),
			errors.Is(err, domain.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, booking.ErrRequestInFlight):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusCreated,
		CreateBookingResponse{
			BookingID: res.BookingID,
			Status:    res.Status,
		},
	)
}
