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

// SlotHandler serves the staff-facing slot lifecycle: create, open
// with a cascade fill, cancel, read back and the manual sweep.
type SlotHandler struct {
	Slots    *service.SlotService
	Cascade  *service.CascadeService
	SlotRepo *repository.SlotRepo
	Validate *validator.Validate
}

// NewSlotHandler constructs a SlotHandler.
func NewSlotHandler(slots *service.SlotService, cascade *service.CascadeService, slotRepo *repository.SlotRepo) *SlotHandler {
	if slots == nil || cascade == nil || slotRepo == nil {
		panic("nil dependency passed to NewSlotHandler")
	}
	return &SlotHandler{Slots: slots, Cascade: cascade, SlotRepo: slotRepo, Validate: validator.New()}
}

type createSlotRequest struct {
	StaffID   uint64    `json:"staff_id" validate:"required,gt=0"`
	ServiceID uint64    `json:"service_id" validate:"required,gt=0"`
	StartAt   time.Time `json:"start_at" validate:"required"`
	EndAt     time.Time `json:"end_at" validate:"required"`
}

type slotResponse struct {
	ID            uint64     `json:"id"`
	StaffID       uint64     `json:"staff_id"`
	ServiceID     uint64     `json:"service_id"`
	StartAt       time.Time  `json:"start_at"`
	EndAt         time.Time  `json:"end_at"`
	Status        string     `json:"status"`
	HeldEntryID   *uint64    `json:"held_entry_id,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

func toSlotResponse(s *model.Slot) slotResponse {
	return slotResponse{
		ID:            s.ID,
		StaffID:       s.StaffID,
		ServiceID:     s.ServiceID,
		StartAt:       s.StartAt,
		EndAt:         s.EndAt,
		Status:        string(s.Status),
		HeldEntryID:   s.HeldEntryID,
		HoldExpiresAt: s.HoldExpiresAt,
	}
}

// Create handles POST /v1/slots.  A new slot starts open; an
// overlapping live slot for the same staff member gets 409.
func (h *SlotHandler) Create(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	var req createSlotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	slot := &model.Slot{
		TenantID:  tenant,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		StartAt:   req.StartAt.UTC(),
		EndAt:     req.EndAt.UTC(),
	}
	if err := h.Slots.Create(c.Request().Context(), slot); err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidWindow):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_at must be before end_at"})
		case errors.Is(err, repository.ErrPastWindow):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_at is in the past"})
		case errors.Is(err, repository.ErrSlotTimeConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "staff member already has a live slot at this time"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, toSlotResponse(slot))
}

// Open handles POST /v1/slots/:id/open: the slot re-opens (from
// canceled or a withdrawn hold) and a cascade step runs immediately,
// so the response already tells staff whether an offer went out and to
// whom.
func (h *SlotHandler) Open(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	slot, err := h.Slots.Open(ctx, tenant, slotID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		case errors.Is(err, repository.ErrSlotNotAvailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot cannot be opened from its current state"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	// A manual re-open is a fresh offer round; earlier decliners are
	// eligible again.
	if err := h.Cascade.ResetExclusions(ctx, slotID); err != nil {
		c.Logger().Warnf("exclusion reset failed for slot %d: %v", slotID, err)
	}

	fill, err := h.Cascade.Fill(ctx, tenant, slotID)
	if err != nil {
		// The slot is open; report it even though the fill failed.
		return c.JSON(http.StatusOK, echo.Map{
			"slot":  toSlotResponse(slot),
			"error": "cascade step failed, slot remains open",
		})
	}

	resp := echo.Map{
		"slot":              toSlotResponse(slot),
		"candidates":        len(fill.Candidates),
		"notification_sent": fill.NotificationSent,
	}
	if fill.Top != nil {
		resp["top_candidate"] = echo.Map{
			"entry_id":       fill.Top.ID,
			"customer_name":  fill.Top.CustomerName,
			"priority_score": fill.Top.PriorityScore,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel handles POST /v1/slots/:id/cancel.  Booked slots refuse;
// everything else cancels, returning a held candidate to the pool.
func (h *SlotHandler) Cancel(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Slots.Cancel(c.Request().Context(), tenant, slotID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		case errors.Is(err, repository.ErrSlotBooked):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booked slots cannot be canceled here"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/slots/:id.  Reads go straight to the repository;
// the response cache middleware absorbs polling bursts.
func (h *SlotHandler) Get(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	slot, err := h.SlotRepo.Get(c.Request().Context(), tenant, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toSlotResponse(slot))
}

// Sweep handles POST /v1/sweep: an operator-triggered expired-hold
// sweep for the caller's tenant.  The scheduled sweep makes this
// optional; it exists for support tooling and tests.
func (h *SlotHandler) Sweep(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return err
	}
	result, err := h.Cascade.ProcessExpiredHolds(c.Request().Context(), &tenant)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"released":              result.Released,
		"cascade_notifications": result.CascadeNotifications,
	})
}
