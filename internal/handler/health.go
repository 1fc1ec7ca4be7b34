// Package handler contains the HTTP handlers.  Handlers bind and
// validate input, call a service and translate sentinel errors to
// status codes; all business rules live below them.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness for load balancers and monitoring.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
