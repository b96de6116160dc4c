package handler

import (
	"net/http" // HTTP status codes
	"strings"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/kututa/railway-booking/internal/service"
)

// TrainHandler serves the public timetable: train search and the classes
// with fares of one train.  Neither endpoint requires authentication.
type TrainHandler struct {
	Catalog *service.Catalog
}

// NewTrainHandler constructs a TrainHandler.  The catalog must be non-nil.
func NewTrainHandler(catalog *service.Catalog) *TrainHandler {
	if catalog == nil {
		panic("nil catalog passed to NewTrainHandler")
	}
	return &TrainHandler{Catalog: catalog}
}

// Search handles GET /v1/trains/search?from=NRB&to=MSA.  Station codes
// are case insensitive.  An empty list is returned when no active train
// runs between the stations.
func (h *TrainHandler) Search(c echo.Context) error {
	from := strings.ToUpper(strings.TrimSpace(c.QueryParam("from")))
	to := strings.ToUpper(strings.TrimSpace(c.QueryParam("to")))
	if from == "" || to == "" {
		return writeError(c, &service.ValidationError{Field: "from,to", Message: "origin and destination are required"})
	}
	trains, err := h.Catalog.Search(c.Request().Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trains": trains})
}

// Classes handles GET /v1/trains/:id/classes and returns every class of
// the train with its fare for the full route.
func (h *TrainHandler) Classes(c echo.Context) error {
	classes, err := h.Catalog.Classes(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"train_id": c.Param("id"), "classes": classes})
}
