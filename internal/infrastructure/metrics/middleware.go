package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware returns an Echo middleware that records HTTP request metrics.
func Middleware(m *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := responseStatus(c, err)

			m.RecordHTTPRequest(c.Request().Method, routePath(c, status), strconv.Itoa(status), duration)

			return err
		}
	}
}

// unmatchedPath labels requests that hit no route, so scanners probing
// random urls cannot blow up label cardinality.
const unmatchedPath = "unmatched"

// routePath returns the matched route pattern.
func routePath(c echo.Context, status int) string {
	if path := c.Path(); path != "" && status != http.StatusNotFound {
		return path
	}
	return unmatchedPath
}

// responseStatus returns the status the error handler will send.
// the handler runs after middleware, so an error has not been written yet.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
