package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/cadence/internal/infrastructure/logging"
)

// readyTimeout bounds the whole readiness probe.
const readyTimeout = 3 * time.Second

// HealthChecker is a dependency that can report whether it is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

type healthHandler struct {
	checks map[string]HealthChecker
	logger *logging.Logger
}

// RegisterHealthRoutes registers liveness and readiness endpoints.
// checks maps a dependency name to its checker; disabled dependencies are
// simply left out.
func RegisterHealthRoutes(e *echo.Echo, checks map[string]HealthChecker, logger *logging.Logger) {
	h := &healthHandler{checks: checks, logger: logger.WithComponent("health")}
	e.GET("/health", h.live)
	e.GET("/ready", h.ready)
}

// live returns the basic health status.
// used for liveness probes, never touches dependencies.
func (h *healthHandler) live(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "cadence",
	})
}

// ready pings every dependency and fails if any of them is down.
func (h *healthHandler) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].HealthCheck(ctx); err != nil {
			h.logger.HealthCheckFailed(name, err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		h.logger.HealthCheckPassed(name)
		results[name] = "ok"
	}

	resp := HealthResponse{Status: "ready", Service: "cadence", Checks: results}
	if status != http.StatusOK {
		resp.Status = "not_ready"
	}
	return c.JSON(status, resp)
}
