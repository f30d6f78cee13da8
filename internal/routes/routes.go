package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lawdesk/lawdesk/internal/authflow"
	"github.com/lawdesk/lawdesk/internal/config"
	"github.com/lawdesk/lawdesk/internal/connectivity"
	"github.com/lawdesk/lawdesk/internal/credcache"
	"github.com/lawdesk/lawdesk/internal/identity"
	"github.com/lawdesk/lawdesk/internal/logging"
	"github.com/lawdesk/lawdesk/internal/middleware"
	"github.com/lawdesk/lawdesk/internal/notification"
	"github.com/lawdesk/lawdesk/internal/profile"
	"github.com/lawdesk/lawdesk/internal/roster"
	"github.com/lawdesk/lawdesk/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Monitor connectivity.Monitor
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Outside dev the hosted backends must be wired, even though main also
	// checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(logging.Component(d.Logger, "http")))

	RegisterHealthRoutes(app, d)

	credStore, err := credcache.NewFileStore(d.Cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("open credential cache: %w", err)
	}

	var profiles profile.Repository
	if d.DB != nil {
		profiles = profile.NewPostgresRepository(d.DB)
	} else {
		profiles = profile.NewMemoryRepository()
	}

	var provider identity.Provider
	if d.Cfg.AuthAPIURL != "" {
		provider = identity.NewRESTProvider(d.Cfg.AuthAPIURL, d.Cfg.AuthAPIKey)
	} else {
		// Config only allows an empty AUTH_API_URL in dev.
		provider = identity.NewMemoryProvider()
	}

	monitor := d.Monitor
	if monitor == nil {
		monitor = connectivity.Static(true)
	}

	orch := authflow.New(provider, profiles, credStore, monitor,
		logging.Component(d.Logger, "authflow"))
	sessions := session.NewService(d.Cfg, credStore)
	authHandler := authflow.NewHandler(orch, sessions)

	notifier := notification.NewLoggerNotifier(logging.Component(d.Logger, "notification"))
	rosterSvc := roster.NewService(profiles, notifier)
	rosterHandler := roster.NewHandler(rosterSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"online":     monitor.Online(),
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	var signupIdem fiber.Handler
	if d.Cache != nil {
		signupIdem = middleware.SignupIdempotency(d.Cache, d.Cfg.SignupIdempotencyTTL,
			logging.Component(d.Logger, "idempotency"))
	}
	RegisterAuthRoutes(api, authHandler, rateLimiter, signupIdem)

	// Protected routes
	jwtmw := middleware.JWTAuth(sessions, profiles)
	protected := api.Group("", jwtmw)
	protected.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals(middleware.LocalUserID).(string)
		offline, _ := c.Locals(middleware.LocalOffline).(bool)
		if uid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		if offline {
			// No profile store offline; the snapshot is all there is.
			id, ok, err := credStore.LoadIdentity()
			if err != nil || !ok {
				return fiber.NewError(http.StatusUnauthorized, "no offline session")
			}
			return c.JSON(fiber.Map{"user": id, "offline_login": true})
		}
		p, err := profiles.Get(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "profile not found")
		}
		return c.JSON(fiber.Map{
			"user_id":        p.ID,
			"full_name":      p.FullName,
			"mobile_number":  p.MobileNumber,
			"role":           p.Role,
			"phone_verified": p.PhoneVerified,
			"is_approved":    p.IsApproved,
			"is_active":      p.IsActive,
		})
	})

	admin := protected.Group("/roster", middleware.RequireAdmin())
	RegisterRosterRoutes(admin, rosterHandler)

	return nil
}
