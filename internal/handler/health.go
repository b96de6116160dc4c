package handler // declare the package name; contains HTTP handlers

import (
    "context"  // context bounds the dependency checks
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is a dependency that can report its health.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthHandler reports liveness and the state of optional dependencies.
type HealthHandler struct {
    Checks map[string]Pinger
}

// Health is used by load balancers and monitoring systems to verify that
// the service is running.  It answers 200 with "status":"ok" when every
// check passes and 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    checks := make(map[string]string, len(h.Checks))
    for name, p := range h.Checks {
        if err := p.PingContext(ctx); err != nil {
            checks[name] = err.Error()
            status = http.StatusServiceUnavailable
            continue
        }
        checks[name] = "ok"
    }
    body := echo.Map{"status": "ok", "checks": checks}
    if status != http.StatusOK {
        body["status"] = "degraded"
    }
    return c.JSON(status, body)
}
