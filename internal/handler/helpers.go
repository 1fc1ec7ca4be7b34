package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/middleware"
)

// tenantID pulls the tenant resolved by the middleware.  A zero value
// here means the route was wired without TenantFromHeader.
func tenantID(c echo.Context) (uint64, error) {
	id, ok := middleware.TenantID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "tenant not resolved")
	}
	return id, nil
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
