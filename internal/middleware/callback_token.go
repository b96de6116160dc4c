package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/kututa/railway-booking/internal/utils"
)

// CallbackToken guards the gateway callback route.  The callback URL
// registered with the gateway embeds a secret path token; requests whose
// :token does not match tokenHash (bcrypt) are dropped.  Rejections are
// answered with the gateway's own acknowledgement shape and nothing is
// processed.  An empty hash disables the
// check.
func CallbackToken(tokenHash string, log logrus.FieldLogger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if tokenHash == "" {
                return next(c)
            }
            if !utils.VerifySecret(tokenHash, c.Param("token")) {
                log.WithField("ip", c.RealIP()).Warn("mpesa callback with bad token rejected")
                return c.JSON(http.StatusOK, echo.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
            }
            return next(c)
        }
    }
}
