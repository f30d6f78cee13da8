// Package authflow drives the login, sign-up and phone-verification flow of
// the office app, including the offline-fallback login path.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lawdesk/lawdesk/internal/connectivity"
	"github.com/lawdesk/lawdesk/internal/credcache"
	"github.com/lawdesk/lawdesk/internal/identity"
	"github.com/lawdesk/lawdesk/internal/phone"
	"github.com/lawdesk/lawdesk/internal/profile"
)

// State is the orchestrator's visible position in the flow.
type State int

const (
	StateIdle State = iota
	StateSubmittingLogin
	StateSubmittingSignup
	StateAwaitingVerificationCode
	StateSubmittingVerification
)

// Decision is the single consistent answer a submit produces.
type Decision int

const (
	// DecisionLoggedIn lets the user in; the identity rides on the outcome.
	DecisionLoggedIn Decision = iota
	// DecisionVerificationRequired asks for the out-of-band activation code.
	DecisionVerificationRequired
	// DecisionAwaitingApproval confirms the phone but blocks until an admin
	// approves the account.
	DecisionAwaitingApproval
	// DecisionSignedUp confirms account creation.
	DecisionSignedUp
	// DecisionSetupRequired hands control to the external database setup flow.
	DecisionSetupRequired
)

func (d Decision) String() string {
	switch d {
	case DecisionLoggedIn:
		return "logged_in"
	case DecisionVerificationRequired:
		return "verification_required"
	case DecisionAwaitingApproval:
		return "awaiting_approval"
	case DecisionSignedUp:
		return "signed_up"
	case DecisionSetupRequired:
		return "setup_required"
	default:
		return "unknown"
	}
}

// Outcome is the result of a submit. OfflineLogin marks sessions
// reconstructed from the device cache rather than the identity provider.
type Outcome struct {
	Decision     Decision
	Identity     identity.Identity
	OfflineLogin bool
	Message      string
}

var (
	ErrInvalidPhone              = phone.ErrInvalidPhone
	ErrInvalidCredentials        = errors.New("login credentials are incorrect")
	ErrNoOfflineAccount          = errors.New("server unreachable and no account is stored on this device")
	ErrOfflineCredentialMismatch = errors.New("credentials do not match the account stored on this device")
	ErrDuplicateMobile           = errors.New("this mobile number is already registered")
	ErrDuplicateAccount          = errors.New("this account is already registered")
	ErrVerificationCodeMismatch  = errors.New("activation code is incorrect")
	ErrVerificationUnavailable   = errors.New("could not check the activation code, try again later")
	ErrSignupRequiresConnection  = errors.New("creating an account requires an internet connection")
	ErrNoPendingVerification     = errors.New("no login is awaiting verification")
	ErrBusy                      = errors.New("another attempt is already in flight")
)

// Orchestrator owns the auth state machine. All collaborators are injected so
// connectivity and backend behavior can be simulated in tests.
type Orchestrator struct {
	provider identity.Provider
	profiles profile.Repository
	cache    credcache.Store
	monitor  connectivity.Monitor
	logger   *slog.Logger

	mu         sync.Mutex
	busy       bool
	state      State
	authFailed bool
	pending    *identity.Identity
}

// New wires an orchestrator in the idle state.
func New(provider identity.Provider, profiles profile.Repository, cache credcache.Store, monitor connectivity.Monitor, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		profiles: profiles,
		cache:    cache,
		monitor:  monitor,
		logger:   logger,
		state:    StateIdle,
	}
}

// State reports the current flow position.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// AuthFailed reports whether the last submit failed in a way that gates
// visual affordances on the form.
func (o *Orchestrator) AuthFailed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.authFailed
}

// begin enforces the single-flight guard: at most one in-flight attempt.
func (o *Orchestrator) begin(s State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy
	}
	o.busy = true
	o.state = s
	o.authFailed = false
	return nil
}

// finish returns to a stable state: the verification step while a login is
// pending a code, idle otherwise.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false
	if o.pending != nil {
		o.state = StateAwaitingVerificationCode
	} else {
		o.state = StateIdle
	}
}

func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	o.authFailed = true
	o.mu.Unlock()
	return err
}

// Login submits the login form. Online it consults the identity provider and
// the profile store; offline, or when the provider is unreachable, it falls
// back to the credentials cached on this device.
func (o *Orchestrator) Login(ctx context.Context, mobile, password string) (Outcome, error) {
	if err := o.begin(StateSubmittingLogin); err != nil {
		return Outcome{}, err
	}
	defer o.finish()

	// A fresh login abandons any verification step left from a prior attempt.
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()

	e164, err := phone.ToE164(mobile)
	if err != nil {
		return Outcome{}, o.fail(ErrInvalidPhone)
	}

	if !o.monitor.Online() {
		return o.offlineLogin(mobile, password)
	}

	loginKey := phone.LoginKey(e164)
	id, err := o.provider.SignInWithPassword(ctx, loginKey, password)
	if err != nil {
		switch identity.KindOf(err) {
		case identity.KindInvalidCredentials:
			return Outcome{}, o.fail(ErrInvalidCredentials)
		case identity.KindNetworkUnreachable:
			// Recovered locally, never surfaced as a raw error.
			o.logger.Info("identity provider unreachable, attempting offline login")
			return o.offlineLogin(mobile, password)
		case identity.KindSchemaNotInitialized:
			return Outcome{
				Decision: DecisionSetupRequired,
				Message:  "the database is not initialized, run setup first",
			}, nil
		default:
			return Outcome{}, fmt.Errorf("sign in: %w", err)
		}
	}

	prof, err := o.profiles.Get(ctx, id.ID)
	if err != nil {
		if errors.Is(err, profile.ErrSchemaNotInitialized) {
			return Outcome{
				Decision: DecisionSetupRequired,
				Message:  "the database is not initialized, run setup first",
			}, nil
		}
		return Outcome{}, fmt.Errorf("load profile: %w", err)
	}

	// Admins bypass verification regardless of phone_verified/is_approved.
	if prof.IsAdmin() {
		o.writeCache(mobile, password, id)
		return Outcome{Decision: DecisionLoggedIn, Identity: id}, nil
	}

	if !prof.PhoneVerified {
		o.mu.Lock()
		o.pending = &id
		o.mu.Unlock()
		return Outcome{
			Decision: DecisionVerificationRequired,
			Identity: id,
			Message:  "enter the activation code the admin sent to your number",
		}, nil
	}

	o.writeCache(mobile, password, id)
	return Outcome{Decision: DecisionLoggedIn, Identity: id}, nil
}

// offlineLogin trusts the last successful login cached on this device.
func (o *Orchestrator) offlineLogin(mobile, password string) (Outcome, error) {
	creds, haveCreds, err := o.cache.LoadCredentials()
	if err != nil {
		return Outcome{}, fmt.Errorf("read credential cache: %w", err)
	}
	snapshot, haveSnapshot, err := o.cache.LoadIdentity()
	if err != nil {
		return Outcome{}, fmt.Errorf("read identity snapshot: %w", err)
	}
	if !haveCreds || !haveSnapshot {
		return Outcome{}, o.fail(ErrNoOfflineAccount)
	}

	// Plaintext comparison, no attempt counter. Deliberately weaker than the
	// online path: the trust boundary is this one device and the last
	// successful login only.
	o.logger.Warn("offline login attempt", "mobile_suffix", phone.LastNine(mobile))
	if phone.LastNine(creds.Mobile) != phone.LastNine(mobile) || creds.Password != password {
		return Outcome{}, o.fail(ErrOfflineCredentialMismatch)
	}

	if err := o.cache.SetLoggedOut(false); err != nil {
		o.logger.Warn("clear logged-out marker", "error", err)
	}
	return Outcome{Decision: DecisionLoggedIn, Identity: snapshot, OfflineLogin: true}, nil
}

// VerifyCode submits the activation code for the login retained by the
// verification step. The code stays usable across attempts; there is no
// lockout or counter.
func (o *Orchestrator) VerifyCode(ctx context.Context, code string) (Outcome, error) {
	o.mu.Lock()
	pending := o.pending
	o.mu.Unlock()
	if pending == nil {
		return Outcome{}, ErrNoPendingVerification
	}

	if err := o.begin(StateSubmittingVerification); err != nil {
		return Outcome{}, err
	}
	defer o.finish()

	prof, err := o.profiles.Get(ctx, pending.ID)
	if err != nil {
		o.logger.Warn("verification profile fetch failed", "error", err)
		return Outcome{}, ErrVerificationUnavailable
	}

	if prof.VerificationCode == nil || strings.TrimSpace(code) != *prof.VerificationCode {
		return Outcome{}, o.fail(ErrVerificationCodeMismatch)
	}

	verified := true
	if err := o.profiles.Update(ctx, pending.ID, profile.Patch{PhoneVerified: &verified}); err != nil {
		return Outcome{}, fmt.Errorf("mark phone verified: %w", err)
	}

	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()

	if prof.IsApproved {
		return Outcome{Decision: DecisionLoggedIn, Identity: *pending}, nil
	}
	return Outcome{
		Decision: DecisionAwaitingApproval,
		Message:  "phone number confirmed, wait for admin approval to sign in",
	}, nil
}

// SignUp submits the registration form. Account creation is online-only and
// the provider side generates the activation code and profile row.
func (o *Orchestrator) SignUp(ctx context.Context, fullName, mobile, password string) (Outcome, error) {
	if err := o.begin(StateSubmittingSignup); err != nil {
		return Outcome{}, err
	}
	defer o.finish()

	if !o.monitor.Online() {
		return Outcome{}, ErrSignupRequiresConnection
	}

	e164, err := phone.ToE164(mobile)
	if err != nil {
		return Outcome{}, o.fail(ErrInvalidPhone)
	}
	localForm, err := phone.ToLocalForm(mobile)
	if err != nil {
		return Outcome{}, o.fail(ErrInvalidPhone)
	}

	exists, err := o.profiles.ExistsByLocalMobile(ctx, localForm)
	if err != nil {
		// The duplicate pre-check is best-effort; the provider still rejects
		// duplicate accounts.
		o.logger.Warn("duplicate mobile pre-check failed", "error", err)
	} else if exists {
		return Outcome{}, o.fail(ErrDuplicateMobile)
	}

	id, err := o.provider.SignUp(ctx, phone.LoginKey(e164), password, identity.Metadata{
		FullName:     fullName,
		MobileNumber: mobile,
	})
	if err != nil {
		if identity.KindOf(err) == identity.KindAlreadyRegistered {
			return Outcome{}, o.fail(ErrDuplicateAccount)
		}
		return Outcome{}, fmt.Errorf("create account: %w", err)
	}

	return Outcome{
		Decision: DecisionSignedUp,
		Identity: id,
		Message:  "account created, contact the admin for your activation code",
	}, nil
}

// writeCache records the successful online login for the offline path.
// Cache failures never block a login.
func (o *Orchestrator) writeCache(mobile, password string, id identity.Identity) {
	if err := o.cache.SaveCredentials(credcache.Credentials{Mobile: mobile, Password: password}); err != nil {
		o.logger.Warn("cache credentials", "error", err)
	}
	if err := o.cache.SaveIdentity(id); err != nil {
		o.logger.Warn("cache identity snapshot", "error", err)
	}
}
