package handler

import (
	"net/http"
	"strconv"

	"tenant_auth_backend/internal/notification/inapp"
	"tenant_auth_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HTTPHandler struct {
	svc *inapp.Service
}

func NewHTTPHandler(svc *inapp.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Pending)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
}

func (h *HTTPHandler) Pending(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	items, err := h.svc.Pending(c.Request.Context(), userID, orgID, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), userID, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"count": count})
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}
	if httpkit.HandleError(c, h.svc.MarkRead(c.Request.Context(), userID, orgID, id)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.MarkAllRead(c.Request.Context(), userID, orgID)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

func scope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return uuid.Nil, uuid.Nil, false
	}
	tenantID, ok := id.TenantID()
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "tenant not set", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return id.UserID(), tenantID, true
}
