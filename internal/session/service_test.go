package session

import (
	"testing"
	"time"

	"github.com/lawdesk/lawdesk/internal/config"
	"github.com/lawdesk/lawdesk/internal/credcache"
	"github.com/lawdesk/lawdesk/internal/identity"
)

func newService(t *testing.T) (*Service, *credcache.FileStore) {
	t.Helper()
	cache, err := credcache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("cache store: %v", err)
	}
	cfg := config.Config{
		JWTSecret:       "test-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
	return NewService(cfg, cache), cache
}

func testIdentity() identity.Identity {
	return identity.Identity{
		ID:       "33333333-3333-3333-3333-333333333333",
		LoginKey: "sy963912345678@email.com",
	}
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newService(t)

	pair, err := svc.Issue(testIdentity(), false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.RefreshToken == "" {
		t.Fatal("online login must get a refresh token")
	}

	claims, err := svc.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != testIdentity().ID || claims.OfflineLogin {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestOfflineLoginGetsNoRefreshToken(t *testing.T) {
	svc, _ := newService(t)

	pair, err := svc.Issue(testIdentity(), true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.RefreshToken != "" {
		t.Fatal("offline login must not get a refresh token")
	}

	claims, err := svc.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !claims.OfflineLogin {
		t.Fatal("offline flag must survive the round trip")
	}
}

func TestRefresh(t *testing.T) {
	svc, _ := newService(t)

	pair, err := svc.Issue(testIdentity(), false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	access, expires, err := svc.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if expires <= 0 {
		t.Fatal("expected positive expiry")
	}
	if _, err := svc.Verify(access); err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}

	// Access tokens are signed with a different secret and must not refresh.
	if _, _, err := svc.Refresh(pair.AccessToken); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLogoutSetsMarkerWithoutErasingCache(t *testing.T) {
	svc, cache := newService(t)
	creds := credcache.Credentials{Mobile: "0912345678", Password: "secret"}
	if err := cache.SaveCredentials(creds); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if err := svc.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !cache.LoggedOut() {
		t.Fatal("marker must be set")
	}
	if _, ok, _ := cache.LoadCredentials(); !ok {
		t.Fatal("logout must not erase cached credentials")
	}
}
