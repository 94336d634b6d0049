package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joacominatel/cadence/internal/infrastructure/logging"
	"github.com/joacominatel/cadence/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for route registration.
type RouterConfig struct {
	// HealthChecks are pinged by /ready, keyed by dependency name.
	HealthChecks map[string]HealthChecker
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
}

// RegisterRoutes sets up the ops routes on the server.
// the engine has no public api; its outputs are consumed in-process.
func RegisterRoutes(e *echo.Echo, config RouterConfig) {
	// prometheus metrics endpoint (standard scraping path)
	if config.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
			config.Metrics.Registry,
			promhttp.HandlerOpts{
				Registry:          config.Metrics.Registry,
				EnableOpenMetrics: true,
			},
		)))

		// apply metrics middleware to all routes
		e.Use(metrics.Middleware(config.Metrics))
	}

	RegisterHealthRoutes(e, config.HealthChecks, config.Logger)
}
