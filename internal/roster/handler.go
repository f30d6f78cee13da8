package roster

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lawdesk/lawdesk/internal/phone"
	"github.com/lawdesk/lawdesk/internal/profile"
)

// Handler exposes the admin roster endpoints.
type Handler struct {
	svc *Service
}

// NewHandler builds a roster handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type rosterEntry struct {
	ID                string     `json:"id"`
	FullName          string     `json:"full_name"`
	MobileNumber      string     `json:"mobile_number"`
	Role              string     `json:"role"`
	PhoneVerified     bool       `json:"phone_verified"`
	IsApproved        bool       `json:"is_approved"`
	IsActive          bool       `json:"is_active"`
	SubscriptionStart *time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscription_end_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toEntry(p profile.Profile) rosterEntry {
	return rosterEntry{
		ID:                p.ID,
		FullName:          p.FullName,
		MobileNumber:      phone.DisplayForm(p.MobileNumber),
		Role:              p.Role,
		PhoneVerified:     p.PhoneVerified,
		IsApproved:        p.IsApproved,
		IsActive:          p.IsActive,
		SubscriptionStart: p.SubscriptionStart,
		SubscriptionEnd:   p.SubscriptionEnd,
		CreatedAt:         p.CreatedAt,
	}
}

// List returns the sorted roster.
func (h *Handler) List(c *fiber.Ctx) error {
	profiles, err := h.svc.List(c.UserContext())
	if err != nil {
		return translate(err)
	}
	entries := make([]rosterEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, toEntry(p))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"users": entries})
}

type approvalRequest struct {
	Approved bool `json:"approved"`
}

// SetApproved toggles approval for a non-admin profile.
func (h *Handler) SetApproved(c *fiber.Ctx) error {
	var req approvalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetApproved(c.UserContext(), c.Params("id"), req.Approved); err != nil {
		return translate(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "updated"})
}

type activeRequest struct {
	Active bool `json:"active"`
}

// SetActive toggles the active flag for a non-admin profile.
func (h *Handler) SetActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetActive(c.UserContext(), c.Params("id"), req.Active); err != nil {
		return translate(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "updated"})
}

type detailsRequest struct {
	FullName          *string    `json:"full_name"`
	IsApproved        *bool      `json:"is_approved"`
	IsActive          *bool      `json:"is_active"`
	SubscriptionStart *time.Time `json:"subscription_start_date"`
	SubscriptionEnd   *time.Time `json:"subscription_end_date"`
}

// UpdateDetails edits name, flags and subscription window.
func (h *Handler) UpdateDetails(c *fiber.Ctx) error {
	var req detailsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	patch := profile.Patch{
		FullName:          req.FullName,
		IsApproved:        req.IsApproved,
		IsActive:          req.IsActive,
		SubscriptionStart: req.SubscriptionStart,
		SubscriptionEnd:   req.SubscriptionEnd,
	}
	if err := h.svc.UpdateDetails(c.UserContext(), c.Params("id"), patch); err != nil {
		return translate(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "updated"})
}

// Delete removes a profile.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return translate(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "deleted"})
}

// SendCode delivers the activation code link to the notifier.
func (h *Handler) SendCode(c *fiber.Ctx) error {
	if err := h.svc.SendVerificationCode(c.UserContext(), c.Params("id")); err != nil {
		return translate(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "sent"})
}

func translate(err error) error {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAdminImmutable), errors.Is(err, ErrNoVerificationCode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
