package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user's id stored by JWTAuth, or ""
// for anonymous requests.
func UserID(c echo.Context) string {
    if v, ok := c.Get(CtxUserID).(string); ok {
        return v
    }
    return ""
}

// rateKeyUser is UserID with "anon" for anonymous requests, used to build
// rate limit keys.
func rateKeyUser(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}
