package handler

import (
	"context"
	"errors"
	"net/http"

	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/internal/identity/transport"
	"tenant_auth_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgUserNotFound = "user not found"

// UserReader loads the caller's user document.
type UserReader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (identity.User, error)
}

type Handler struct {
	users UserReader
}

func New(users UserReader) *Handler {
	return &Handler{users: users}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me/memberships", h.ListMemberships)
}

// ListMemberships returns every membership of the caller, removed ones
// included, so clients can offer an organization switcher.
func (h *Handler) ListMemberships(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), id.UserID())
	if errors.Is(err, identity.ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, msgUserNotFound, nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	current, hasTenant := id.TenantID()
	resp := transport.ListMembershipsResponse{Memberships: make([]transport.MembershipResponse, 0, len(user.Organizations))}
	for _, m := range user.Organizations {
		resp.Memberships = append(resp.Memberships, transport.MembershipResponse{
			OrganizationID: m.OrganizationID.String(),
			Roles:          m.RoleNames(),
			Status:         string(m.Status),
			IsPrimary:      m.IsPrimary,
			JobTitle:       m.JobTitle,
			JoinedAt:       m.JoinedAt,
			Current:        hasTenant && m.OrganizationID == current,
		})
	}
	httpkit.OK(c, resp)
}
