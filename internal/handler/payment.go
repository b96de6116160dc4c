package handler

import (
	"io"       // reading the raw callback body
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/service"
)

// maxCallbackBody caps the size of a gateway callback.
const maxCallbackBody = 64 << 10

// callbackAck is the only answer the gateway ever receives.  Anything
// else makes it retry the delivery.
var callbackAck = echo.Map{"ResultCode": 0, "ResultDesc": "Accepted"}

// PaymentHandler starts M-Pesa payments, reports their status and
// receives the gateway's result callbacks.
type PaymentHandler struct {
	Payments *service.Reconciler
	Log      logrus.FieldLogger
}

func NewPaymentHandler(payments *service.Reconciler, log logrus.FieldLogger) *PaymentHandler {
	if payments == nil {
		panic("nil reconciler passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: payments, Log: log}
}

type stkPushRequest struct {
	BookingID   string `json:"booking_id" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required,ke_phone"`
}

// STKPush handles POST /v1/payments/mpesa/stk-push.  It sends a payment
// prompt for a pending booking of the caller to the given phone.
func (h *PaymentHandler) STKPush(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	var body stkPushRequest
	if err := bindAndValidate(c, &body); err != nil {
		return writeError(c, err)
	}
	res, err := h.Payments.Initiate(c.Request().Context(), service.InitiateInput{
		BookingID: body.BookingID,
		UserID:    userID,
		Phone:     body.PhoneNumber,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type statusRequest struct {
	CheckoutRequestID string `json:"checkout_request_id" validate:"required"`
}

// Status handles POST /v1/payments/mpesa/status.  When no result has
// arrived yet the gateway is queried and its answer applied.
func (h *PaymentHandler) Status(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errUnauthorized)
	}
	var body statusRequest
	if err := bindAndValidate(c, &body); err != nil {
		return writeError(c, err)
	}
	out, err := h.Payments.Poll(c.Request().Context(), body.CheckoutRequestID, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Callback handles POST /v1/payments/mpesa/callback/:token.  The result is
// applied and the gateway is always acknowledged; failures are only
// logged.
func (h *PaymentHandler) Callback(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		h.Log.WithError(err).Warn("read mpesa callback")
		return c.JSON(http.StatusOK, callbackAck)
	}
	out, err := h.Payments.HandleCallback(c.Request().Context(), raw)
	if err != nil {
		h.Log.WithError(err).Error("mpesa callback not applied")
		return c.JSON(http.StatusOK, callbackAck)
	}
	h.Log.WithFields(logrus.Fields{
		"checkout_request_id": out.CheckoutRequestID,
		"booking_id":          out.BookingID,
		"booking_status":      out.BookingStatus,
	}).Info("mpesa callback processed")
	return c.JSON(http.StatusOK, callbackAck)
}
