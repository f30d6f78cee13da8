package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lawdesk/lawdesk/internal/profile"
	"github.com/lawdesk/lawdesk/internal/session"
)

// Locals keys set by JWTAuth.
const (
	LocalUserID  = "user_id"
	LocalRole    = "role"
	LocalOffline = "offline_login"
)

// JWTAuth validates the bearer token and loads the caller's profile role so
// downstream handlers can gate on it.
func JWTAuth(sessions *session.Service, profiles profile.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := sessions.Verify(tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalOffline, claims.OfflineLogin)

		// Offline sessions cannot reach the profile store; they carry no role
		// and never pass RequireAdmin.
		if !claims.OfflineLogin {
			p, err := profiles.Get(c.UserContext(), claims.UserID)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "profile not found")
			}
			c.Locals(LocalRole, p.Role)
		}

		return c.Next()
	}
}

// RequireAdmin gates roster endpoints to admin-role callers.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		if role != profile.RoleAdmin {
			return fiber.NewError(http.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}
