package handler

import (
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/kututa/railway-booking/internal/service"
)

// BookingHandler creates pending bookings for held seats and lets users
// read their bookings.  Confirmation happens only through payment.
type BookingHandler struct {
	Bookings *service.BookingController
}

func NewBookingHandler(bookings *service.BookingController) *BookingHandler {
	if bookings == nil {
		panic("nil booking controller passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

type createBookingRequest struct {
	PassengerID string `json:"passenger_id" validate:"required"`
	SeatID      string `json:"seat_id" validate:"required"`
	TrainID     string `json:"train_id" validate:"required"`
	TravelDate  string `json:"travel_date" validate:"required,travel_date"`
}

// Create handles POST /v1/bookings.  The caller must hold the seat; the
// booking starts pending and its fare is taken from the seat's class.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	var body createBookingRequest
	if err := bindAndValidate(c, &body); err != nil {
		return writeError(c, err)
	}
	b, err := h.Bookings.Create(c.Request().Context(), service.CreateBookingInput{
		UserID:      userID,
		PassengerID: body.PassengerID,
		SeatID:      body.SeatID,
		TrainID:     body.TrainID,
		TravelDate:  body.TravelDate,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.  Bookings of other users are
// reported as not found.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	b, err := h.Bookings.Get(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// List handles GET /v1/bookings.
func (h *BookingHandler) List(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}
