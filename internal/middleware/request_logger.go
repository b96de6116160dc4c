package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/sirupsen/logrus"
)

// RequestLogger writes one access log entry per request through logrus.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURI:       true,
        LogStatus:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            entry := log.WithFields(logrus.Fields{
                "method":     v.Method,
                "uri":        v.URI,
                "status":     v.Status,
                "latency_ms": v.Latency.Milliseconds(),
                "ip":         v.RemoteIP,
            })
            if v.RequestID != "" {
                entry = entry.WithField("request_id", v.RequestID)
            }
            if uid := UserID(c); uid != "" {
                entry = entry.WithField("user_id", uid)
            }
            switch {
            case v.Error != nil:
                entry.WithError(v.Error).Error("request")
            case v.Status >= 500:
                entry.Error("request")
            default:
                entry.Info("request")
            }
            return nil
        },
    })
}
