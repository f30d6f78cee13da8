package profile

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryRepository builds an in-memory profile store for testing.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]Profile)}
}

// Put seeds a profile directly; test helper, not part of Repository.
func (r *MemoryRepository) Put(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.profiles[p.ID] = p
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}

	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.PhoneVerified != nil {
		p.PhoneVerified = *patch.PhoneVerified
	}
	if patch.IsApproved != nil {
		p.IsApproved = *patch.IsApproved
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.SubscriptionStart != nil {
		p.SubscriptionStart = patch.SubscriptionStart
	}
	if patch.SubscriptionEnd != nil {
		p.SubscriptionEnd = patch.SubscriptionEnd
	}
	p.UpdatedAt = time.Now().UTC()
	r.profiles[id] = p
	return nil
}

func (r *MemoryRepository) ExistsByLocalMobile(_ context.Context, localMobile string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.MobileNumber == localMobile {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profiles := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].IsApproved != profiles[j].IsApproved {
			return !profiles[i].IsApproved
		}
		return profiles[i].CreatedAt.After(profiles[j].CreatedAt)
	})
	return profiles, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(r.profiles, id)
	return nil
}
