package router

import (
	"github.com/labstack/echo/v4"

	"github.com/kututa/railway-booking/internal/handler"
	"github.com/kututa/railway-booking/internal/middleware"
)

// RegisterAdmin registers operational endpoints restricted to the admin
// role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, mw Middleware) {
	g := e.Group(
		"/v1/admin",
		chain(
			middleware.JWTAuth(mw.JWTSecret),
			middleware.RequireRole(middleware.RoleAdmin),
			timeout(mw),
		)...,
	)
	g.POST("/bookings/sweep", a.Sweep)
}
