package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) PreviewDeadLettersHandler(c echo.Context) error {
	entries, err := s.deadLetterQueue.Preview(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entries)
}

func (s *Server) RequeueDeadLetterHandler(c echo.Context) error {
	err := s.deadLetterQueue.Requeue(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) RemoveDeadLetterHandler(c echo.Context) error {
	err := s.deadLetterQueue.Remove(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
