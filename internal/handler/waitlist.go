package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/repository"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/service"
)

// WaitlistHandler serves waitlist signups.
type WaitlistHandler struct {
	Waitlist *service.WaitlistService
	Validate *validator.Validate
}

// NewWaitlistHandler constructs a WaitlistHandler.
func NewWaitlistHandler(waitlist *service.WaitlistService) *WaitlistHandler {
	if waitlist == nil {
		panic("nil service passed to NewWaitlistHandler")
	}
	return &WaitlistHandler{Waitlist: waitlist, Validate: validator.New()}
}

type joinWaitlistRequest struct {
	CustomerName string    `json:"customer_name" validate:"required,min=1,max=120"`
	Phone        string    `json:"phone" validate:"required,e164"`
	Email        *string   `json:"email" validate:"omitempty,email"`
	ServiceID    uint64    `json:"service_id" validate:"required,gt=0"`
	StaffID      *uint64   `json:"staff_id" validate:"omitempty,gt=0"`
	WindowStart  time.Time `json:"window_start" validate:"required"`
	WindowEnd    time.Time `json:"window_end" validate:"required"`
	VIP          bool      `json:"vip"`
}

// Join handles POST /v1/waitlist.  The body carries the customer's
// contact details, the wanted service and the time window they can
// make.  A phone number at its live-entry cap gets 409.
func (h *WaitlistHandler) Join(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	var req joinWaitlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	entry := &model.WaitlistEntry{
		TenantID:     tenant,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Email:        req.Email,
		ServiceID:    req.ServiceID,
		StaffID:      req.StaffID,
		WindowStart:  req.WindowStart.UTC(),
		WindowEnd:    req.WindowEnd.UTC(),
		VIP:          req.VIP,
	}
	if err := h.Waitlist.Join(c.Request().Context(), entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidWindow):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "window_start must be before window_end"})
		case errors.Is(err, repository.ErrPastWindow):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "window_start is in the past"})
		case errors.Is(err, repository.ErrWaitlistLimit):
			return c.JSON(http.StatusConflict, echo.Map{"error": "too many live waitlist entries for this phone"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":             entry.ID,
		"status":         entry.Status,
		"priority_score": entry.PriorityScore,
	})
}
