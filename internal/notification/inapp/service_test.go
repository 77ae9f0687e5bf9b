package inapp

import (
	"context"
	"testing"

	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeStore struct {
	created   []CreateParams
	lastLimit int
}

func (f *fakeStore) Create(_ context.Context, p CreateParams) (Notification, error) {
	f.created = append(f.created, p)
	return Notification{ID: uuid.New(), OrganizationID: p.OrganizationID, UserID: p.UserID, Title: p.Title, Content: p.Content, Category: p.Category}, nil
}

func (f *fakeStore) Pending(_ context.Context, _, _ uuid.UUID, limit int) ([]Notification, error) {
	f.lastLimit = limit
	return nil, nil
}

func (f *fakeStore) CountUnread(context.Context, uuid.UUID, uuid.UUID) (int, error) { return 0, nil }

func (f *fakeStore) MarkRead(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeStore) MarkAllRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func TestSendDefaultsCategory(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)

	n, err := svc.Send(context.Background(), SendParams{OrgID: uuid.New(), UserID: uuid.New(), Title: " Hi ", Content: "Welcome"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if n.Category != "info" || n.Title != "Hi" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestSendRequiresContent(t *testing.T) {
	svc := NewService(&fakeStore{}, nil)
	_, err := svc.Send(context.Background(), SendParams{OrgID: uuid.New(), UserID: uuid.New(), Title: "Hi"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPendingClampsLimit(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)

	_, _ = svc.Pending(context.Background(), uuid.New(), uuid.New(), 0)
	if store.lastLimit != DefaultPendingLimit {
		t.Fatalf("expected default limit, got %d", store.lastLimit)
	}
	_, _ = svc.Pending(context.Background(), uuid.New(), uuid.New(), 500)
	if store.lastLimit != maxPendingLimit {
		t.Fatalf("expected clamped limit, got %d", store.lastLimit)
	}
}
