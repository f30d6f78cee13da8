package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lawdesk/lawdesk/internal/connectivity"
	"github.com/lawdesk/lawdesk/internal/credcache"
	"github.com/lawdesk/lawdesk/internal/identity"
	"github.com/lawdesk/lawdesk/internal/logging"
	"github.com/lawdesk/lawdesk/internal/profile"
)

const (
	testMobile   = "0912345678"
	testPassword = "secret123"
)

type fixture struct {
	orch     *Orchestrator
	provider *identity.MemoryProvider
	profiles *profile.MemoryRepository
	cache    *credcache.FileStore
	identity identity.Identity
}

func newFixture(t *testing.T, online bool, prof profile.Profile) *fixture {
	t.Helper()

	provider := identity.NewMemoryProvider()
	id, err := provider.SignUp(context.Background(), "sy963912345678@email.com", testPassword,
		identity.Metadata{FullName: "Test User", MobileNumber: testMobile})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	profiles := profile.NewMemoryRepository()
	prof.ID = id.ID
	profiles.Put(prof)

	cache, err := credcache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("cache store: %v", err)
	}

	orch := New(provider, profiles, cache, connectivity.Static(online), logging.Discard())
	return &fixture{
		orch:     orch,
		provider: provider,
		profiles: profiles,
		cache:    cache,
		identity: id,
	}
}

func TestLoginInvalidPhoneRejectedBeforeNetwork(t *testing.T) {
	f := newFixture(t, true, profile.Profile{Role: "lawyer"})

	_, err := f.orch.Login(context.Background(), "123", testPassword)
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if !f.orch.AuthFailed() {
		t.Fatal("authFailed must be set")
	}
	if f.orch.State() != StateIdle {
		t.Fatalf("expected idle state, got %v", f.orch.State())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t, true, profile.Profile{Role: "lawyer", PhoneVerified: true})

	_, err := f.orch.Login(context.Background(), testMobile, "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !f.orch.AuthFailed() {
		t.Fatal("authFailed must be set")
	}
}

func TestAdminBypassesVerificationAndApproval(t *testing.T) {
	f := newFixture(t, true, profile.Profile{
		Role:          profile.RoleAdmin,
		PhoneVerified: false,
		IsApproved:    false,
	})

	out, err := f.orch.Login(context.Background(), testMobile, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.Decision != DecisionLoggedIn {
		t.Fatalf("expected DecisionLoggedIn, got %v", out.Decision)
	}
	if out.OfflineLogin {
		t.Fatal("online login must not be marked offline")
	}

	// Admin success writes the offline cache.
	if _, ok, _ := f.cache.LoadCredentials(); !ok {
		t.Fatal("credentials must be cached after admin login")
	}
	if _, ok, _ := f.cache.LoadIdentity(); !ok {
		t.Fatal("identity snapshot must be cached after admin login")
	}
}

func TestUnverifiedLoginEntersVerificationWithoutCacheWrite(t *testing.T) {
	f := newFixture(t, true, profile.Profile{Role: "lawyer", PhoneVerified: false})

	out, err := f.orch.Login(context.Background(), testMobile, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.Decision != DecisionVerificationRequired {
		t.Fatalf("expected DecisionVerificationRequired, got %v", out.Decision)
	}
	if f.orch.State() != StateAwaitingVerificationCode {
		t.Fatalf("expected verification state, got %v", f.orch.State())
	}
	if _, ok, _ := f.cache.LoadCredentials(); ok {
		t.Fatal("no cache write may happen before verification")
	}
}

func TestVerifiedLoginSucceedsAndCaches(t *testing.T) {
	f := newFixture(t, true, profile.Profile{Role: "lawyer", PhoneVerified: true, IsApproved: true})

	out, err := f.orch.Login(context.Background(), testMobile, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.Decision != DecisionLoggedIn {
		t.Fatalf("expected DecisionLoggedIn, got %v", out.Decision)
	}
	if creds, ok, _ := f.cache.LoadCredentials(); !ok || creds.Mobile != testMobile {
		t.Fatalf("expected cached credentials for %s, got ok=%v", testMobile, ok)
	}
}

func TestVerificationCodeFlow(t *testing.T) {
	code := "482913"
	f := newFixture(t, true, profile.Profile{
		Role:             "lawyer",
		PhoneVerified:    false,
		IsApproved:       true,
		VerificationCode: &code,
	})
	ctx := context.Background()

	if _, err := f.orch.Login(ctx, testMobile, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Wrong code keeps the step alive and retriable.
	_, err := f.orch.VerifyCode(ctx, "000000")
	if !errors.Is(err, ErrVerificationCodeMismatch) {
		t.Fatalf("expected ErrVerificationCodeMismatch, got %v", err)
	}
	if f.orch.State() != StateAwaitingVerificationCode {
		t.Fatalf("mismatch must keep the verification step, got %v", f.orch.State())
	}
	if !f.orch.AuthFailed() {
		t.Fatal("authFailed must be set on mismatch")
	}

	// Correct code (with surrounding whitespace) verifies and logs in.
	out, err := f.orch.VerifyCode(ctx, "  "+code+" ")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Decision != DecisionLoggedIn {
		t.Fatalf("expected DecisionLoggedIn, got %v", out.Decision)
	}
	if out.Identity.ID != f.identity.ID {
		t.Fatal("outcome must carry the original identity")
	}

	prof, err := f.profiles.Get(ctx, f.identity.ID)
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if !prof.PhoneVerified {
		t.Fatal("phone_verified must be persisted")
	}

	// The step is consumed; a second submit has nothing to verify.
	if _, err := f.orch.VerifyCode(ctx, code); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected ErrNoPendingVerification, got %v", err)
	}
}

func TestVerificationWithoutApprovalBlocks(t *testing.T) {
	code := "111222"
	f := newFixture(t, true, profile.Profile{
		Role:             "lawyer",
		PhoneVerified:    false,
		IsApproved:       false,
		VerificationCode: &code,
	})
	ctx := context.Background()

	if _, err := f.orch.Login(ctx, testMobile, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := f.orch.VerifyCode(ctx, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Decision != DecisionAwaitingApproval {
		t.Fatalf("expected DecisionAwaitingApproval, got %v", out.Decision)
	}
	if f.orch.State() != StateIdle {
		t.Fatalf("expected return to idle, got %v", f.orch.State())
	}
}

func seedOfflineCache(t *testing.T, f *fixture) {
	t.Helper()
	out, err := f.orch.Login(context.Background(), testMobile, testPassword)
	if err != nil || out.Decision != DecisionLoggedIn {
		t.Fatalf("seed online login: %v (decision %v)", err, out.Decision)
	}
}

func TestOfflineLoginMatchesCachedCredentials(t *testing.T) {
	f := newFixture(t, true, profile.Profile{Role: "lawyer", PhoneVerified: true, IsApproved: true})
	seedOfflineCache(t, f)
	if err := f.cache.SetLoggedOut(true); err != nil {
		t.Fatalf("set marker: %v", err)
	}

	f.provider.SetOffline(true)

	// Different formatting, same last nine digits.
	out, err := f.orch.Login(context.Background(), "+963 912 345 678", testPassword)
	if err != nil {
		t.Fatalf("offline login: %v", err)
	}
	if out.Decision != DecisionLoggedIn || !out.OfflineLogin {
		t.Fatalf("expected offline DecisionLoggedIn, got %+v", out)
	}
	if out.Identity.ID != f.identity.ID {
		t.Fatal("offline outcome must carry the snapshotted identity")
	}
	if f.cache.LoggedOut() {
		t.Fatal("logged-out marker must be cleared on offline login")
	}
}

func TestOfflineLoginMismatches(t *testing.T) {
	cases := []struct {
		name     string
		mobile   string
		password string
	}{
		{name: "wrong password", mobile: testMobile, password: "different"},
		{name: "wrong mobile", mobile: "0998765432", password: testPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, true, profile.Profile{Role: "lawyer", PhoneVerified: true})
			seedOfflineCache(t, f)
			f.provider.SetOffline(true)

			_, err := f.orch.Login(context.Background(), tc.mobile, tc.password)
			if !errors.Is(err, ErrOfflineCredentialMismatch) {
				t.Fatalf("expected ErrOfflineCredentialMismatch, got %v", err)
			}
		})
	}
}

func TestOfflineLoginWithoutCachedAccount(t *testing.T) {
	f := newFixture(t, false, profile.Profile{Role: "lawyer", PhoneVerified: true})

	_, err := f.orch.Login(context.Background(), testMobile, testPassword)
	if !errors.Is(err, ErrNoOfflineAccount) {
		t.Fatalf("expected ErrNoOfflineAccount, got %v", err)
	}
}

func TestNetworkErrorFallbackIsTransparent(t *testing.T) {
	// A network-class provider error with a valid cache must end exactly like
	// a directly-requested offline login.
	f := newFixture(t, true, profile.Profile{Role: "lawyer", PhoneVerified: true})
	seedOfflineCache(t, f)

	// Monitor still says online; only the provider call fails.
	f.provider.SetOffline(true)

	out, err := f.orch.Login(context.Background(), testMobile, testPassword)
	if err != nil {
		t.Fatalf("fallback login: %v", err)
	}
	if out.Decision != DecisionLoggedIn || !out.OfflineLogin {
		t.Fatalf("expected transparent offline fallback, got %+v", out)
	}
}

type trackingProvider struct {
	identity.Provider
	signUpCalls int
}

func (p *trackingProvider) SignUp(ctx context.Context, loginKey, password string, meta identity.Metadata) (identity.Identity, error) {
	p.signUpCalls++
	return p.Provider.SignUp(ctx, loginKey, password, meta)
}

func TestSignUpRejectedOfflineBeforeAnyCall(t *testing.T) {
	tracked := &trackingProvider{Provider: identity.NewMemoryProvider()}
	profiles := profile.NewMemoryRepository()
	cache, _ := credcache.NewFileStore(t.TempDir())
	orch := New(tracked, profiles, cache, connectivity.Static(false), logging.Discard())

	_, err := orch.SignUp(context.Background(), "New User", testMobile, testPassword)
	if !errors.Is(err, ErrSignupRequiresConnection) {
		t.Fatalf("expected ErrSignupRequiresConnection, got %v", err)
	}
	if tracked.signUpCalls != 0 {
		t.Fatal("no provider call may be made while offline")
	}
}

func TestSignUpDuplicateMobileRejectedBeforeCreation(t *testing.T) {
	tracked := &trackingProvider{Provider: identity.NewMemoryProvider()}
	profiles := profile.NewMemoryRepository()
	profiles.Put(profile.Profile{ID: "22222222-2222-2222-2222-222222222222", MobileNumber: "0912345678"})
	cache, _ := credcache.NewFileStore(t.TempDir())
	orch := New(tracked, profiles, cache, connectivity.Static(true), logging.Discard())

	_, err := orch.SignUp(context.Background(), "New User", testMobile, testPassword)
	if !errors.Is(err, ErrDuplicateMobile) {
		t.Fatalf("expected ErrDuplicateMobile, got %v", err)
	}
	if tracked.signUpCalls != 0 {
		t.Fatal("duplicate mobile must be rejected before the creation call")
	}
}

func TestSignUpSucceedsAndNeverWritesCache(t *testing.T) {
	provider := identity.NewMemoryProvider()
	profiles := profile.NewMemoryRepository()
	cache, _ := credcache.NewFileStore(t.TempDir())
	orch := New(provider, profiles, cache, connectivity.Static(true), logging.Discard())

	out, err := orch.SignUp(context.Background(), "New User", testMobile, testPassword)
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if out.Decision != DecisionSignedUp {
		t.Fatalf("expected DecisionSignedUp, got %v", out.Decision)
	}
	if out.Identity.ID == "" {
		t.Fatal("expected a created identity")
	}
	if _, ok, _ := cache.LoadCredentials(); ok {
		t.Fatal("sign-up must never write the credential cache")
	}
}

func TestSignUpDuplicateAccountFromProvider(t *testing.T) {
	provider := identity.NewMemoryProvider()
	if _, err := provider.SignUp(context.Background(), "sy963912345678@email.com", "pw", identity.Metadata{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Profile store is empty, so the pre-check passes and the provider itself
	// reports the duplicate.
	profiles := profile.NewMemoryRepository()
	cache, _ := credcache.NewFileStore(t.TempDir())
	orch := New(provider, profiles, cache, connectivity.Static(true), logging.Discard())

	_, err := orch.SignUp(context.Background(), "New User", testMobile, testPassword)
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

type blockingProvider struct {
	identity.Provider
	release chan struct{}
}

func (p *blockingProvider) SignInWithPassword(ctx context.Context, loginKey, password string) (identity.Identity, error) {
	<-p.release
	return p.Provider.SignInWithPassword(ctx, loginKey, password)
}

func TestSingleFlightGuard(t *testing.T) {
	inner := identity.NewMemoryProvider()
	blocked := &blockingProvider{Provider: inner, release: make(chan struct{})}
	profiles := profile.NewMemoryRepository()
	cache, _ := credcache.NewFileStore(t.TempDir())
	orch := New(blocked, profiles, cache, connectivity.Static(true), logging.Discard())

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		orch.Login(context.Background(), testMobile, testPassword)
		close(done)
	}()

	<-started
	// Wait until the first attempt holds the guard.
	deadline := time.After(2 * time.Second)
	for orch.State() != StateSubmittingLogin {
		select {
		case <-deadline:
			t.Fatal("first attempt never started")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := orch.Login(context.Background(), testMobile, testPassword); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(blocked.release)
	<-done
}

func TestSchemaNotInitializedRequestsSetup(t *testing.T) {
	provider := &failingProvider{kind: identity.KindSchemaNotInitialized}
	profiles := profile.NewMemoryRepository()
	cache, _ := credcache.NewFileStore(t.TempDir())
	orch := New(provider, profiles, cache, connectivity.Static(true), logging.Discard())

	out, err := orch.Login(context.Background(), testMobile, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.Decision != DecisionSetupRequired {
		t.Fatalf("expected DecisionSetupRequired, got %v", out.Decision)
	}
}

type failingProvider struct {
	kind identity.ErrorKind
}

func (p *failingProvider) SignInWithPassword(context.Context, string, string) (identity.Identity, error) {
	return identity.Identity{}, &identity.Error{Kind: p.kind, Message: "provider failure"}
}

func (p *failingProvider) SignUp(context.Context, string, string, identity.Metadata) (identity.Identity, error) {
	return identity.Identity{}, &identity.Error{Kind: p.kind, Message: "provider failure"}
}
