package roster

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lawdesk/lawdesk/internal/notification"
	"github.com/lawdesk/lawdesk/internal/profile"
)

type captureNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *captureNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return nil
}

func seededService() (*Service, *profile.MemoryRepository, *captureNotifier) {
	repo := profile.NewMemoryRepository()
	code := "482913"
	repo.Put(profile.Profile{
		ID:           "aaaaaaaa-0000-0000-0000-000000000001",
		FullName:     "Office Admin",
		MobileNumber: "0911111111",
		Role:         profile.RoleAdmin,
		IsApproved:   true,
		CreatedAt:    time.Now().Add(-48 * time.Hour),
	})
	repo.Put(profile.Profile{
		ID:               "aaaaaaaa-0000-0000-0000-000000000002",
		FullName:         "New Lawyer",
		MobileNumber:     "0912345678",
		Role:             "lawyer",
		VerificationCode: &code,
		CreatedAt:        time.Now(),
	})
	notifier := &captureNotifier{}
	return NewService(repo, notifier), repo, notifier
}

func TestListOrdersUnapprovedFirst(t *testing.T) {
	svc, _, _ := seededService()

	users, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].IsApproved {
		t.Fatal("unapproved profiles must sort first")
	}
}

func TestApprovalGuardsAdmins(t *testing.T) {
	svc, repo, _ := seededService()
	ctx := context.Background()

	if err := svc.SetApproved(ctx, "aaaaaaaa-0000-0000-0000-000000000001", false); !errors.Is(err, ErrAdminImmutable) {
		t.Fatalf("expected ErrAdminImmutable, got %v", err)
	}

	if err := svc.SetApproved(ctx, "aaaaaaaa-0000-0000-0000-000000000002", true); err != nil {
		t.Fatalf("approve lawyer: %v", err)
	}
	p, _ := repo.Get(ctx, "aaaaaaaa-0000-0000-0000-000000000002")
	if !p.IsApproved {
		t.Fatal("approval not persisted")
	}
}

func TestSendVerificationCodeBuildsWhatsAppLink(t *testing.T) {
	svc, _, notifier := seededService()
	ctx := context.Background()

	if err := svc.SendVerificationCode(ctx, "aaaaaaaa-0000-0000-0000-000000000002"); err != nil {
		t.Fatalf("send code: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(notifier.messages))
	}

	msg := notifier.messages[0]
	if msg.Kind != notification.KindVerificationCode {
		t.Fatalf("unexpected kind %s", msg.Kind)
	}
	if !strings.HasPrefix(msg.Destination, "https://wa.me/963912345678?text=") {
		t.Fatalf("unexpected destination %s", msg.Destination)
	}
	if !strings.Contains(msg.Body, "482913") {
		t.Fatal("body must carry the code")
	}

	// Admin has no code to deliver.
	if err := svc.SendVerificationCode(ctx, "aaaaaaaa-0000-0000-0000-000000000001"); !errors.Is(err, ErrNoVerificationCode) {
		t.Fatalf("expected ErrNoVerificationCode, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, repo, _ := seededService()
	ctx := context.Background()

	if err := svc.Delete(ctx, "aaaaaaaa-0000-0000-0000-000000000002"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "aaaaaaaa-0000-0000-0000-000000000002"); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
