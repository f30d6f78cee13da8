package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures at the client boundary so callers
// branch on a kind, never on raw message text.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindInvalidCredentials
	KindNetworkUnreachable
	KindSchemaNotInitialized
	KindAlreadyRegistered
)

// Error is a classified provider failure. Message keeps the provider's raw
// text for diagnosability.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity provider: %s", e.Message)
}

// KindOf extracts the classification from an error chain. Unclassified errors
// report KindOther.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}

// Provider is the boundary to the hosted identity service.
type Provider interface {
	// SignInWithPassword authenticates the derived login key and password.
	SignInWithPassword(ctx context.Context, loginKey, password string) (Identity, error)
	// SignUp creates a new account. The provider side generates the
	// verification code and the profile row.
	SignUp(ctx context.Context, loginKey, password string, meta Metadata) (Identity, error)
}
