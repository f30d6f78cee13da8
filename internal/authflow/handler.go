package authflow

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lawdesk/lawdesk/internal/identity"
	"github.com/lawdesk/lawdesk/internal/session"
)

// Handler exposes the auth flow over HTTP for the desktop app.
type Handler struct {
	orch     *Orchestrator
	sessions *session.Service
}

// NewHandler builds an auth handler.
func NewHandler(orch *Orchestrator, sessions *session.Service) *Handler {
	return &Handler{orch: orch, sessions: sessions}
}

type loginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type outcomeResponse struct {
	Decision     string             `json:"decision"`
	Message      string             `json:"message,omitempty"`
	User         *identity.Identity `json:"user,omitempty"`
	OfflineLogin bool               `json:"offline_login,omitempty"`
	Tokens       *session.TokenPair `json:"tokens,omitempty"`
}

func (h *Handler) respond(c *fiber.Ctx, out Outcome) error {
	resp := outcomeResponse{
		Decision:     out.Decision.String(),
		Message:      out.Message,
		OfflineLogin: out.OfflineLogin,
	}

	switch out.Decision {
	case DecisionLoggedIn:
		pair, err := h.sessions.Issue(out.Identity, out.OfflineLogin)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		id := out.Identity
		resp.User = &id
		resp.Tokens = &pair
	case DecisionSignedUp:
		id := out.Identity
		resp.User = &id
	}

	return c.Status(http.StatusOK).JSON(resp)
}

// Login submits the login form; the response carries the flow decision.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	out, err := h.orch.Login(c.UserContext(), req.Mobile, req.Password)
	if err != nil {
		return translateFlowErr(err)
	}
	return h.respond(c, out)
}

type signupRequest struct {
	FullName string `json:"full_name"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// SignUp submits the registration form.
func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	out, err := h.orch.SignUp(c.UserContext(), req.FullName, req.Mobile, req.Password)
	if err != nil {
		return translateFlowErr(err)
	}
	return h.respond(c, out)
}

type verifyRequest struct {
	Code string `json:"code"`
}

// Verify submits the activation code for the pending login.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	out, err := h.orch.VerifyCode(c.UserContext(), req.Code)
	if err != nil {
		return translateFlowErr(err)
	}
	return h.respond(c, out)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token from a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	token, expires, err := h.sessions.Refresh(req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid refresh token")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": expires})
}

// Logout sets the device's logged-out marker; the credential cache survives
// so offline re-login stays possible.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Logout(); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// translateFlowErr maps flow errors onto HTTP statuses. The auth_failed flag
// tells the form whether to show the red-border affordance.
func translateFlowErr(err error) error {
	switch {
	case errors.Is(err, ErrInvalidPhone),
		errors.Is(err, ErrDuplicateMobile),
		errors.Is(err, ErrDuplicateAccount),
		errors.Is(err, ErrSignupRequiresConnection),
		errors.Is(err, ErrNoPendingVerification),
		errors.Is(err, ErrVerificationCodeMismatch):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrOfflineCredentialMismatch):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrBusy):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoOfflineAccount),
		errors.Is(err, ErrVerificationUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
