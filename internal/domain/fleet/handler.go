package fleet

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ambulink/ambulink/internal/platform/auth"
	"github.com/ambulink/ambulink/pkg/pagination"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Fleet administration – admin or dispatcher
	g := api.Group("", auth.RequireRole("admin", "dispatcher"))
	g.GET("/ambulances", h.ListAmbulances)
	g.GET("/ambulances/:id", h.GetAmbulance)
	g.POST("/ambulances", h.CreateAmbulance)
	g.PUT("/ambulances/:id", h.UpdateAmbulance)
	g.GET("/drivers", h.ListDrivers)
	g.GET("/drivers/:id", h.GetDriver)
	g.POST("/drivers", h.CreateDriver)
	g.PUT("/drivers/:id", h.UpdateDriver)
	g.PUT("/drivers/:id/status", h.SetDriverStatus)
}

func mapError(err error) *echo.HTTPError {
	var nf NotFoundError
	var conflict ConflictError
	var assigned AlreadyAssignedError
	var validation ValidationError
	switch {
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &conflict), errors.As(err, &assigned):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// -- Ambulances --

func (h *Handler) CreateAmbulance(c echo.Context) error {
	var a Ambulance
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.CreateAmbulance(c.Request().Context(), &a); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAmbulance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.registry.GetAmbulance(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAmbulances(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := AmbulanceStatus(c.QueryParam("status"))
	items, total, err := h.registry.ListAmbulances(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAmbulance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Ambulance
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.registry.UpdateAmbulance(c.Request().Context(), &a); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// -- Drivers --

func (h *Handler) CreateDriver(c echo.Context) error {
	var d Driver
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.CreateDriver(c.Request().Context(), &d); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDriver(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.registry.GetDriver(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDrivers(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := DriverStatus(c.QueryParam("status"))
	items, total, err := h.registry.ListDrivers(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDriver(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var d Driver
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.registry.UpdateDriver(c.Request().Context(), &d); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type driverStatusRequest struct {
	Status DriverStatus `json:"status"`
}

func (h *Handler) SetDriverStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req driverStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.SetDriverStatus(c.Request().Context(), id, req.Status); err != nil {
		return mapError(err)
	}
	d, err := h.registry.GetDriver(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, d)
}
