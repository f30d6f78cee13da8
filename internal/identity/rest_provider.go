package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RESTProvider talks to the hosted identity service over its JSON API. All
// failures are classified here so the rest of the gateway never inspects
// provider message text.
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTProvider builds a provider client for the given API base URL.
func NewRESTProvider(baseURL, apiKey string) *RESTProvider {
	return &RESTProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type providerUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"user_metadata"`
}

func (u providerUser) identity() Identity {
	return Identity{
		ID:           u.ID,
		LoginKey:     u.Email,
		FullName:     u.Metadata.FullName,
		MobileNumber: u.Metadata.MobileNumber,
		CreatedAt:    u.CreatedAt,
	}
}

// SignInWithPassword performs a password-grant token request.
func (p *RESTProvider) SignInWithPassword(ctx context.Context, loginKey, password string) (Identity, error) {
	payload := map[string]string{"email": loginKey, "password": password}

	var resp struct {
		User providerUser `json:"user"`
	}
	if err := p.post(ctx, "/token?grant_type=password", payload, &resp); err != nil {
		return Identity{}, err
	}
	if resp.User.ID == "" {
		return Identity{}, &Error{Kind: KindOther, Message: "no user returned"}
	}
	return resp.User.identity(), nil
}

// SignUp creates a new account carrying the sign-up metadata.
func (p *RESTProvider) SignUp(ctx context.Context, loginKey, password string, meta Metadata) (Identity, error) {
	payload := map[string]any{
		"email":    loginKey,
		"password": password,
		"data":     meta,
	}

	var resp struct {
		User providerUser `json:"user"`
	}
	if err := p.post(ctx, "/signup", payload, &resp); err != nil {
		return Identity{}, err
	}
	if resp.User.ID == "" {
		return Identity{}, &Error{Kind: KindOther, Message: "no user returned"}
	}
	return resp.User.identity(), nil
}

func (p *RESTProvider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// Transport failure: DNS, refused connection, timeout. The caller
		// falls back to the offline path on this kind.
		return &Error{Kind: KindNetworkUnreachable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Kind: KindNetworkUnreachable, Message: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Kind: KindOther, Message: "decode response: " + err.Error()}
		}
		return nil
	}

	return classifyResponse(resp.StatusCode, raw)
}

// classifyResponse maps a provider error payload to an ErrorKind.
func classifyResponse(status int, raw []byte) *Error {
	var body struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Message     string `json:"msg"`
	}
	_ = json.Unmarshal(raw, &body)

	msg := body.Description
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	lower := strings.ToLower(msg)
	kind := KindOther
	switch {
	case strings.Contains(lower, "invalid login credentials"),
		body.Error == "invalid_grant":
		kind = KindInvalidCredentials
	case strings.Contains(lower, "already registered"),
		strings.Contains(lower, "unique constraint"):
		kind = KindAlreadyRegistered
	case strings.Contains(lower, `relation "profiles" does not exist`),
		strings.Contains(lower, "database is not configured"):
		kind = KindSchemaNotInitialized
	case status >= 502 && status <= 504:
		kind = KindNetworkUnreachable
	}

	return &Error{Kind: kind, Message: msg}
}
