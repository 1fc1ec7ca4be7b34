// Package middleware carries the HTTP cross-cutting concerns: tenant
// resolution, Redis token-bucket rate limiting and short-lived
// response caching.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// tenantContextKey is where the resolved tenant ID lives in the Echo
// context.
const tenantContextKey = "tenant_id"

// TenantFromHeader resolves the acting tenant from the X-Tenant-ID
// header, falling back to the tenant query parameter for links tapped
// from notifications, and stores it in the context.  Every data access
// downstream is scoped by this value, so a missing or malformed tenant
// is rejected before any handler runs.
func TenantFromHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get("X-Tenant-ID")
			if raw == "" {
				raw = c.QueryParam("tenant")
			}
			if raw == "" {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing X-Tenant-ID header"})
			}
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid X-Tenant-ID header"})
			}
			c.Set(tenantContextKey, id)
			return next(c)
		}
	}
}

// TenantID returns the tenant stored by TenantFromHeader, or false
// when the middleware did not run on this route.
func TenantID(c echo.Context) (uint64, bool) {
	v := c.Get(tenantContextKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}
