package router

import (
	"github.com/labstack/echo/v4"

	"github.com/kututa/railway-booking/internal/handler"
	"github.com/kututa/railway-booking/internal/middleware"
)

// RegisterCustomer registers the passenger facing endpoints under /v1.  All
// routes require a valid JWT with the user or admin role.  Mutating routes
// are rate limited per user.
func RegisterCustomer(e *echo.Echo, h Handlers, mw Middleware) {
	g := e.Group(
		"/v1",
		chain(
			middleware.JWTAuth(mw.JWTSecret),
			middleware.RequireRole(middleware.RoleUser, middleware.RoleAdmin),
			timeout(mw),
		)...,
	)
	limited := chain(mw.RateLimit)

	g.GET("/trains/:id/seats", h.Seat.Map)
	g.POST("/trains/:id/seats/:seat_id/hold", h.Seat.Hold, limited...)
	g.DELETE("/trains/:id/seats/:seat_id/hold", h.Seat.Release, limited...)

	g.POST("/passengers", h.Passenger.Create, limited...)
	g.GET("/passengers", h.Passenger.List)

	g.POST("/bookings", h.Booking.Create, limited...)
	g.GET("/bookings", h.Booking.List)
	g.GET("/bookings/:id", h.Booking.Get)
}

// RegisterPayments registers the M-Pesa endpoints.  STK push and status
// need a user token; the gateway callback is authenticated by the secret
// token in its path.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, mw Middleware) {
	g := e.Group(
		"/v1/payments/mpesa",
		chain(
			middleware.JWTAuth(mw.JWTSecret),
			middleware.RequireRole(middleware.RoleUser, middleware.RoleAdmin),
			timeout(mw),
			mw.RateLimit,
		)...,
	)
	g.POST("/stk-push", p.STKPush)
	g.POST("/status", p.Status)

	e.POST("/v1/payments/mpesa/callback/:token", p.Callback, chain(mw.CallbackToken, timeout(mw))...)
}
