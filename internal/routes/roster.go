package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lawdesk/lawdesk/internal/roster"
)

// RegisterRosterRoutes wires the admin roster endpoints.
func RegisterRosterRoutes(r fiber.Router, h *roster.Handler) {
	r.Get("/", h.List)
	r.Patch("/:id", h.UpdateDetails)
	r.Post("/:id/approval", h.SetApproved)
	r.Post("/:id/active", h.SetActive)
	r.Post("/:id/send-code", h.SendCode)
	r.Delete("/:id", h.Delete)
}
