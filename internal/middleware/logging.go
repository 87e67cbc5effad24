package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// Logging writes one key=value line per HTTP request. Query strings are
// included because nearby searches carry their parameters there on GET.
func Logging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			path := c.Request().URL.Path
			if raw := c.Request().URL.RawQuery; raw != "" {
				path += "?" + raw
			}

			rid, _ := c.Get(ContextKeyRequestID).(string)
			log.Printf("request_id=%s method=%s path=%s status=%d bytes=%d latency=%s",
				rid, c.Request().Method, path, c.Response().Status, c.Response().Size, latency)

			return err
		}
	}
}
