package handler

import (
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/kututa/railway-booking/internal/service"
)

// PassengerHandler lets a user register the travellers they book for.
type PassengerHandler struct {
	Passengers *service.PassengerService
}

func NewPassengerHandler(passengers *service.PassengerService) *PassengerHandler {
	if passengers == nil {
		panic("nil passenger service passed to NewPassengerHandler")
	}
	return &PassengerHandler{Passengers: passengers}
}

type createPassengerRequest struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	IDNumber string `json:"id_number" validate:"required,max=50"`
	Phone    string `json:"phone" validate:"required,ke_phone"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
}

// Create handles POST /v1/passengers.
func (h *PassengerHandler) Create(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	var body createPassengerRequest
	if err := bindAndValidate(c, &body); err != nil {
		return writeError(c, err)
	}
	p, err := h.Passengers.Create(c.Request().Context(), service.CreatePassengerInput{
		UserID:   userID,
		FullName: body.FullName,
		IDNumber: body.IDNumber,
		Phone:    body.Phone,
		Email:    body.Email,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// List handles GET /v1/passengers.
func (h *PassengerHandler) List(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	items, err := h.Passengers.List(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"passengers": items})
}
