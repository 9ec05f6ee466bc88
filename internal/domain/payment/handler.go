package payment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ambulink/ambulink/internal/platform/auth"
	"github.com/ambulink/ambulink/pkg/pagination"
)

type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/payments/:id", h.GetPayment)
	api.POST("/payments/:id/pay", h.RecordPayment)
	api.GET("/payments", h.ListPayments, auth.RequireRole("admin", "dispatcher"))
}

func mapError(err error) *echo.HTTPError {
	var nf NotFoundError
	var settled AlreadySettledError
	var validation ValidationError
	switch {
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &settled):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.ledger.GetPayment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.ledger.RecordPayment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	pg := pagination.FromContext(c)

	if raw := c.QueryParam("booking_id"); raw != "" {
		bookingID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid booking_id")
		}
		items, err := h.ledger.ListByBooking(c.Request().Context(), bookingID)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, len(items), pg.Limit, pg.Offset))
	}

	status := Status(c.QueryParam("status"))
	if status == "" {
		status = StatusPending
	}
	items, total, err := h.ledger.ListByStatus(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
