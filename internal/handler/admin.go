package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kututa/railway-booking/internal/service"
)

// AdminHandler exposes operational actions to administrators.
type AdminHandler struct {
	Sweeper *service.Sweeper
}

func NewAdminHandler(sweeper *service.Sweeper) *AdminHandler {
	return &AdminHandler{Sweeper: sweeper}
}

// Sweep handles POST /v1/admin/bookings/sweep.  It cancels pending
// bookings whose payment window has closed, the same pass the scheduler
// runs.
func (h *AdminHandler) Sweep(c echo.Context) error {
	report, err := h.Sweeper.SweepAbandoned(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
