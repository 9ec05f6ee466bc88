package booking

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ambulink/ambulink/internal/domain/fleet"
	"github.com/ambulink/ambulink/internal/platform/auth"
	"github.com/ambulink/ambulink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/bookings", h.CreateBooking)
	api.GET("/bookings", h.ListBookings)
	api.GET("/bookings/:id", h.GetBooking)
	api.GET("/bookings/:id/timeline", h.Timeline)
	api.POST("/bookings/:id/cancel", h.CancelBooking)

	// Dispatch operations – admin or dispatcher
	ops := api.Group("", auth.RequireRole("admin", "dispatcher"))
	ops.POST("/bookings/:id/confirm", h.ConfirmBooking)
	ops.POST("/bookings/:id/assign", h.AssignResources)
	ops.POST("/bookings/:id/reassign", h.Reassign)
	ops.POST("/bookings/:id/status", h.AdvanceStatus)
}

func mapError(err error) *echo.HTTPError {
	var nf NotFoundError
	var fleetNF fleet.NotFoundError
	var invalid InvalidTransitionError
	var assigned fleet.AlreadyAssignedError
	var failed AssignmentFailedError
	var validation ValidationError
	switch {
	case errors.As(err, &nf), errors.As(err, &fleetNF):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &invalid), errors.As(err, &assigned), errors.As(err, &failed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func actor(c echo.Context) string {
	if id := auth.UserIDFromContext(c.Request().Context()); id != "" {
		return id
	}
	return "anonymous"
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.CreateBooking(c.Request().Context(), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBookings(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Status:   Status(c.QueryParam("status")),
		Type:     Type(c.QueryParam("booking_type")),
		Priority: Priority(c.QueryParam("priority")),
	}
	items, total, err := h.svc.ListBookings(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Timeline(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.Timeline(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ConfirmBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.ManualConfirm(c.Request().Context(), id, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}

type assignRequest struct {
	AmbulanceID uuid.UUID `json:"ambulance_id"`
	DriverID    uuid.UUID `json:"driver_id"`
}

func (h *Handler) AssignResources(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.AssignResources(c.Request().Context(), id, req.AmbulanceID, req.DriverID, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Reassign(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.Reassign(c.Request().Context(), id, req.AmbulanceID, req.DriverID, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) AdvanceStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.AdvanceStatus(c.Request().Context(), id, req.Status, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.CancelBooking(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, b)
}
