package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lawdesk/lawdesk/internal/authflow"
)

// RegisterAuthRoutes wires the login/sign-up/verification endpoints.
func RegisterAuthRoutes(r fiber.Router, h *authflow.Handler, rateLimiter, signupIdem fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	if signupIdem != nil {
		group.Post("/signup", signupIdem, h.SignUp)
	} else {
		group.Post("/signup", h.SignUp)
	}
	group.Post("/verify", h.Verify)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", h.Logout)
}
