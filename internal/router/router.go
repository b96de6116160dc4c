package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/kututa/railway-booking/internal/handler" // handlers that implement each endpoint
)

// Handlers groups every HTTP handler of the service.
type Handlers struct {
	Health    *handler.HealthHandler
	Train     *handler.TrainHandler
	Seat      *handler.SeatHandler
	Passenger *handler.PassengerHandler
	Booking   *handler.BookingHandler
	Payment   *handler.PaymentHandler
	Admin     *handler.AdminHandler
}

// Middleware carries the per-route middleware built from configuration.
// Nil entries are skipped.
type Middleware struct {
	JWTSecret      string
	RequestTimeout time.Duration
	RateLimit      echo.MiddlewareFunc // applied to mutating routes
	Cache          echo.MiddlewareFunc // applied to train search
	CallbackToken  echo.MiddlewareFunc // applied to the gateway callback
}

// Register wires every route on e.
func Register(e *echo.Echo, h Handlers, mw Middleware) {
	RegisterRoutes(e, h.Health)
	RegisterPublic(e, h.Train, h.Seat, mw)
	RegisterCustomer(e, h, mw)
	RegisterPayments(e, h.Payment, mw)
	RegisterAdmin(e, h.Admin, mw)
}

// RegisterRoutes registers routes that do not require authentication.
// "/healthz" is used by load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Health)
}

// RegisterPublic registers the unauthenticated timetable endpoints and the
// live seat stream.  The stream is long lived and gets no request timeout.
func RegisterPublic(e *echo.Echo, trains *handler.TrainHandler, seats *handler.SeatHandler, mw Middleware) {
	e.GET("/v1/trains/search", trains.Search, chain(timeout(mw), mw.Cache)...)
	e.GET("/v1/trains/:id/classes", trains.Classes, chain(timeout(mw))...)
	e.GET("/v1/trains/:id/seats/stream", seats.Stream)
}

// chain drops nil middleware so optional pieces can be passed inline.
func chain(fns ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(fns))
	for _, fn := range fns {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}

func timeout(mw Middleware) echo.MiddlewareFunc {
	if mw.RequestTimeout <= 0 {
		return nil
	}
	return echomw.ContextTimeout(mw.RequestTimeout)
}
