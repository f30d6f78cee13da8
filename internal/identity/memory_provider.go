package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type memoryAccount struct {
	identity Identity
	hash     []byte
}

type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[string]memoryAccount
	offline  bool
}

// NewMemoryProvider builds an in-memory identity provider for tests and
// development runs without the hosted backend.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{accounts: make(map[string]memoryAccount)}
}

// SetOffline makes every call fail with KindNetworkUnreachable, simulating an
// unreachable backend.
func (p *MemoryProvider) SetOffline(offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = offline
}

func (p *MemoryProvider) SignInWithPassword(_ context.Context, loginKey, password string) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.offline {
		return Identity{}, &Error{Kind: KindNetworkUnreachable, Message: "failed to fetch"}
	}
	acct, ok := p.accounts[loginKey]
	if !ok {
		return Identity{}, &Error{Kind: KindInvalidCredentials, Message: "invalid login credentials"}
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return Identity{}, &Error{Kind: KindInvalidCredentials, Message: "invalid login credentials"}
	}
	return acct.identity, nil
}

func (p *MemoryProvider) SignUp(_ context.Context, loginKey, password string, meta Metadata) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offline {
		return Identity{}, &Error{Kind: KindNetworkUnreachable, Message: "failed to fetch"}
	}
	if _, exists := p.accounts[loginKey]; exists {
		return Identity{}, &Error{Kind: KindAlreadyRegistered, Message: "user already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{
		ID:           uuid.New().String(),
		LoginKey:     loginKey,
		FullName:     meta.FullName,
		MobileNumber: meta.MobileNumber,
		CreatedAt:    time.Now().UTC(),
	}
	p.accounts[loginKey] = memoryAccount{identity: id, hash: hash}
	return id, nil
}
