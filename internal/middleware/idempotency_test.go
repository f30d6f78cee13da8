package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lawdesk/lawdesk/internal/logging"
)

func setupSignupApp(t *testing.T, calls *atomic.Int64, failFirst bool) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Post("/signup", SignupIdempotency(cache, time.Minute, logging.Discard()), func(c *fiber.Ctx) error {
		n := calls.Add(1)
		if failFirst && n == 1 {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unreachable"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"decision": "signed_up"})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, cleanup
}

func postSignup(t *testing.T, app *fiber.App, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/signup", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode, string(payload)
}

func TestSignupIdempotencyReplaysResponse(t *testing.T) {
	var calls atomic.Int64
	app, cleanup := setupSignupApp(t, &calls, false)
	defer cleanup()

	body := `{"mobile":"0912345678","full_name":"New User"}`
	code1, payload1 := postSignup(t, app, body)
	if code1 != fiber.StatusOK {
		t.Fatalf("first sign-up: %d", code1)
	}

	code2, payload2 := postSignup(t, app, body)
	if code2 != fiber.StatusOK {
		t.Fatalf("replayed sign-up: %d", code2)
	}
	if payload1 != payload2 {
		t.Fatalf("expected replayed payload %s, got %s", payload1, payload2)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler must run once, ran %d times", calls.Load())
	}
}

func TestSignupIdempotencyAllowsRetryAfterFailure(t *testing.T) {
	var calls atomic.Int64
	app, cleanup := setupSignupApp(t, &calls, true)
	defer cleanup()

	body := `{"mobile":"0912345678"}`
	if code, _ := postSignup(t, app, body); code != fiber.StatusServiceUnavailable {
		t.Fatalf("expected failing first attempt, got %d", code)
	}

	// A failed attempt must not be replayed; the retry reaches the handler.
	if code, _ := postSignup(t, app, body); code != fiber.StatusOK {
		t.Fatalf("retry after failure: %d", code)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 handler runs, got %d", calls.Load())
	}
}
