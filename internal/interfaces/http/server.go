package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"bookings/internal/application/usecases/booking"
	"bookings/internal/deadletter"
)

type BookingsService interface {
	CreateBooking(ctx context.Context, req booking.CreateBookingReq) (*booking.CreateBookingRes, error)
}

type Server struct {
	e *echo.Echo

	bookingsService BookingsService
	bookingsRepo    BookingsRepository
	quotesRepo      QuotesRepository
	deadLetterQueue *deadletter.Queue
}

func NewServer(
	e *echo.Echo,
	bookingsService BookingsService,
	bookingsRepo BookingsRepository,
	quotesRepo QuotesRepository,
	deadLetterQueue *deadletter.Queue,
	routerIsRunning func() bool,
) *Server {
	srv := &Server{
		e:               e,
		bookingsService: bookingsService,
		bookingsRepo:    bookingsRepo,
		quotesRepo:      quotesRepo,
		deadLetterQueue: deadLetterQueue,
	}

	e.POST("/bookings", srv.CreateBookingHandler)
	e.GET("/bookings/:id", srv.GetBookingHandler)

	e.PUT("/quotes/:id", srv.StoreQuoteHandler)

	e.GET("/dead-letter", srv.PreviewDeadLettersHandler)
	e.POST("/dead-letter/:id/requeue", srv.RequeueDeadLetterHandler)
	e.DELETE("/dead-letter/:id", srv.RemoveDeadLetterHandler)

	e.GET("/health", func(c echo.Context) error {
		if !routerIsRunning() {
			return c.String(http.StatusServiceUnavailable, "router is not running")
		}
		return c.String(http.StatusOK, "ok")
	})

	// logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log.FromContext(c.Request().Context()).
				WithField("path", c.Request().URL.Path).
				Info("Handling a request")

			err := next(c)

			if err != nil {
				log.FromContext(c.Request().Context()).
					WithField("error", err).
					Error("Request handling error")
			}

			return err
		}
	})

	return srv
}

func (s *Server) Start() error {
	err := s.e.Start(":8080")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
