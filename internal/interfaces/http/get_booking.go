package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	domain "bookings/internal/domain/bookings"
	"bookings/internal/repository"
)

type BookingsRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
}

type GetBookingResponse struct {
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) GetBookingHandler(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	booking, err := s.bookingsRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "booking not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, GetBookingResponse{
		BookingID: booking.ID,
		Status:    string(booking.Status),
		Version:   booking.Version,
		UpdatedAt: booking.UpdatedAt,
	})
}
