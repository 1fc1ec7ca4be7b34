package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/repository"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/service"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/token"
)

// ConfirmHandler serves the customer-facing confirm and decline links
// embedded in offer notifications.  Both are GETs because they arrive
// as tapped links, and both must answer something sensible no matter
// how stale or replayed the token is.
type ConfirmHandler struct {
	Cascade *service.CascadeService
}

// NewConfirmHandler constructs a ConfirmHandler.
func NewConfirmHandler(cascade *service.CascadeService) *ConfirmHandler {
	if cascade == nil {
		panic("nil service passed to NewConfirmHandler")
	}
	return &ConfirmHandler{Cascade: cascade}
}

// Confirm handles GET /v1/confirm?token=...
func (h *ConfirmHandler) Confirm(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	raw := c.QueryParam("token")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}

	booking, err := h.Cascade.Confirm(c.Request().Context(), tenant, raw)
	if err != nil {
		if resp := tokenErrorResponse(c, err); resp != nil {
			return resp
		}
		switch {
		case errors.Is(err, repository.ErrSlotAlreadyBooked):
			return c.JSON(http.StatusConflict, echo.Map{"error": "this slot is already booked"})
		case errors.Is(err, repository.ErrHoldExpired):
			return c.JSON(http.StatusConflict, echo.Map{"error": "your hold on this slot has expired"})
		case errors.Is(err, repository.ErrSlotNotAvailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "this slot is no longer available"})
		case errors.Is(err, repository.ErrEntryNotActive):
			return c.JSON(http.StatusConflict, echo.Map{"error": "this waitlist entry is no longer live"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":   booking.ID,
		"slot_id":      booking.SlotID,
		"confirmed_at": booking.ConfirmedAt,
	})
}

// Decline handles GET /v1/decline?token=...
func (h *ConfirmHandler) Decline(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	raw := c.QueryParam("token")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}

	name, err := h.Cascade.Decline(c.Request().Context(), tenant, raw)
	if err != nil {
		if resp := tokenErrorResponse(c, err); resp != nil {
			return resp
		}
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"declined": true,
		"customer": name,
	})
}

// tokenErrorResponse maps token verification failures, or returns nil
// for non-token errors.
func tokenErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "this link has expired"})
	case errors.Is(err, token.ErrTokenWrongAction), errors.Is(err, token.ErrTokenWrongTenant),
		errors.Is(err, token.ErrTokenInvalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token"})
	}
	return nil
}
