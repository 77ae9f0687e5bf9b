package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tenant_auth_backend/internal/notification/inapp"
	"tenant_auth_backend/platform/apperr"
	"tenant_auth_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	limit    int
	userID   uuid.UUID
	orgID    uuid.UUID
	unread   int
	markErr  error
	markedID uuid.UUID
}

func (f *fakeStore) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	return inapp.Notification{ID: uuid.New(), UserID: p.UserID, OrganizationID: p.OrganizationID}, nil
}

func (f *fakeStore) Pending(_ context.Context, userID, orgID uuid.UUID, limit int) ([]inapp.Notification, error) {
	f.userID, f.orgID, f.limit = userID, orgID, limit
	return []inapp.Notification{{ID: uuid.New(), UserID: userID, OrganizationID: orgID, Title: "Welcome"}}, nil
}

func (f *fakeStore) CountUnread(context.Context, uuid.UUID, uuid.UUID) (int, error) {
	return f.unread, nil
}

func (f *fakeStore) MarkRead(_ context.Context, _, _ uuid.UUID, id uuid.UUID) error {
	f.markedID = id
	return f.markErr
}

func (f *fakeStore) MarkAllRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func newRouter(store inapp.Store, userID, tenantID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		if tenantID != uuid.Nil {
			c.Set(httpkit.ContextTenantIDKey, tenantID)
		}
	})
	NewHTTPHandler(inapp.NewService(store, nil)).RegisterRoutes(r.Group("/notifications"))
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPendingIsScopedToTokenTenant(t *testing.T) {
	store := &fakeStore{}
	userID, orgID := uuid.New(), uuid.New()

	rec := do(newRouter(store, userID, orgID), http.MethodGet, "/notifications?limit=500")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.userID != userID || store.orgID != orgID {
		t.Fatalf("query not scoped to caller: user=%s org=%s", store.userID, store.orgID)
	}
	if store.limit != 50 {
		t.Fatalf("expected limit to be capped at 50, got %d", store.limit)
	}
	if !strings.Contains(rec.Body.String(), "Welcome") {
		t.Fatalf("expected notification in body: %s", rec.Body.String())
	}
}

func TestTenantlessTokenIsRejected(t *testing.T) {
	rec := do(newRouter(&fakeStore{}, uuid.New(), uuid.Nil), http.MethodGet, "/notifications/unread")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMarkReadValidatesAndMapsErrors(t *testing.T) {
	store := &fakeStore{markErr: apperr.NotFound("notification not found")}
	r := newRouter(store, uuid.New(), uuid.New())

	if rec := do(r, http.MethodPatch, "/notifications/not-a-uuid/read"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}

	id := uuid.New()
	rec := do(r, http.MethodPatch, "/notifications/"+id.String()+"/read")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if store.markedID != id {
		t.Fatalf("expected %s to be marked, got %s", id, store.markedID)
	}
}
