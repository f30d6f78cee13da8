// Package roster implements the admin screen's user management: approval,
// activation, subscription windows and activation-code delivery.
package roster

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/lawdesk/lawdesk/internal/notification"
	"github.com/lawdesk/lawdesk/internal/phone"
	"github.com/lawdesk/lawdesk/internal/profile"
)

var (
	// ErrAdminImmutable guards the roster toggles: admin accounts are never
	// approved, deactivated or edited from this screen.
	ErrAdminImmutable = errors.New("admin accounts cannot be changed from the roster")
	// ErrNoVerificationCode means the profile has no code to deliver.
	ErrNoVerificationCode = errors.New("profile has no activation code")
)

// Service manages the office roster.
type Service struct {
	profiles profile.Repository
	notifier notification.Notifier
}

// NewService builds a roster service.
func NewService(profiles profile.Repository, notifier notification.Notifier) *Service {
	return &Service{profiles: profiles, notifier: notifier}
}

// List returns all profiles, unapproved first, newest first within each group.
func (s *Service) List(ctx context.Context) ([]profile.Profile, error) {
	return s.profiles.List(ctx)
}

// SetApproved flips the approval flag on a non-admin profile.
func (s *Service) SetApproved(ctx context.Context, id string, approved bool) error {
	if err := s.guardNonAdmin(ctx, id); err != nil {
		return err
	}
	return s.profiles.Update(ctx, id, profile.Patch{IsApproved: &approved})
}

// SetActive flips the active flag on a non-admin profile.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.guardNonAdmin(ctx, id); err != nil {
		return err
	}
	return s.profiles.Update(ctx, id, profile.Patch{IsActive: &active})
}

// UpdateDetails edits a non-admin profile's name, flags and subscription
// window.
func (s *Service) UpdateDetails(ctx context.Context, id string, patch profile.Patch) error {
	if err := s.guardNonAdmin(ctx, id); err != nil {
		return err
	}
	return s.profiles.Update(ctx, id, patch)
}

// Delete removes a profile from the roster.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.profiles.Delete(ctx, id)
}

// SendVerificationCode hands the profile's activation code to the notifier as
// a wa.me deep link the admin opens. The messaging channel itself lives
// outside the gateway.
func (s *Service) SendVerificationCode(ctx context.Context, id string) error {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.VerificationCode == nil || *p.VerificationCode == "" {
		return ErrNoVerificationCode
	}

	body := fmt.Sprintf("Hello %s, your %s activation code is: %s",
		p.FullName, "LawDesk", *p.VerificationCode)
	link := "https://wa.me/" + phone.WhatsAppNumber(p.MobileNumber) +
		"?text=" + url.QueryEscape(body)

	return s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindVerificationCode,
		Destination: link,
		Body:        body,
	})
}

func (s *Service) guardNonAdmin(ctx context.Context, id string) error {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsAdmin() {
		return ErrAdminImmutable
	}
	return nil
}
