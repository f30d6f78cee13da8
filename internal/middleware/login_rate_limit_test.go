package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func setupRateLimitedApp(t *testing.T, maxPerMin int) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, maxPerMin), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, cleanup
}

func postLogin(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginRateLimitPerMobile(t *testing.T) {
	app, cleanup := setupRateLimitedApp(t, 2)
	defer cleanup()

	body := `{"mobile":"0912345678"}`
	if code := postLogin(t, app, body); code != fiber.StatusOK {
		t.Fatalf("first attempt: %d", code)
	}
	if code := postLogin(t, app, body); code != fiber.StatusOK {
		t.Fatalf("second attempt: %d", code)
	}
	if code := postLogin(t, app, body); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", code)
	}

	// A different mobile is counted separately.
	if code := postLogin(t, app, `{"mobile":"0998765432"}`); code != fiber.StatusOK {
		t.Fatalf("other mobile must not be limited, got %d", code)
	}

	// Formatting variants of the same number share a bucket.
	if code := postLogin(t, app, `{"mobile":"+963 912 345 678"}`); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected shared bucket across formats, got %d", code)
	}
}

func TestLoginRateLimitNoRedisIsNoop(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 3; i++ {
		if code := postLogin(t, app, `{"mobile":"0912345678"}`); code != fiber.StatusOK {
			t.Fatalf("attempt %d: %d", i, code)
		}
	}
}
