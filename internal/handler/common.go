package handler // handler defines http handlers

import (
    "errors"   // errors.As maps service errors to responses
    "net/http" // status codes

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/kututa/railway-booking/internal/middleware"
    "github.com/kututa/railway-booking/internal/service"
)

// errUnauthorized is returned when a protected handler runs without an
// authenticated user in the context.
var errUnauthorized = echo.Map{"error": "unauthorized", "code": "unauthorized"}

// getUserID extracts the authenticated user's id stored by JWTAuth.
func getUserID(c echo.Context) (string, bool) {
    id := middleware.UserID(c)
    return id, id != ""
}

// bindAndValidate decodes the JSON body into dst and runs the registered
// validator on it.
func bindAndValidate(c echo.Context, dst any) error {
    if err := c.Bind(dst); err != nil {
        return &service.ValidationError{Field: "body", Message: "invalid request body"}
    }
    return c.Validate(dst)
}

// writeError translates service errors to HTTP responses.  The body is
// always {"error": message, "code": machine code}.
func writeError(c echo.Context, err error) error {
    var (
        ve *service.ValidationError
        nf *service.NotFoundError
        ce *service.ConflictError
        af *service.AlreadyFinalizedError
        ue *service.UpstreamError
    )
    switch {
    case errors.As(err, &ve):
        body := echo.Map{"error": ve.Error(), "code": "validation_failed"}
        if ve.Field != "" {
            body["field"] = ve.Field
        }
        return c.JSON(http.StatusBadRequest, body)
    case errors.As(err, &nf):
        return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Error(), "code": "not_found"})
    case errors.As(err, &ce):
        return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "code": string(ce.Reason)})
    case errors.As(err, &af):
        return c.JSON(http.StatusOK, echo.Map{
            "error":      af.Error(),
            "code":       "already_finalized",
            "booking_id": af.BookingID,
            "status":     af.Status,
        })
    case errors.As(err, &ue):
        c.Logger().Error(err)
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "upstream service unavailable", "code": "upstream_error"})
    }
    c.Logger().Error(err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal_error"})
}
