package handler

import (
	"net/http"

	"tenant_auth_backend/internal/onboarding/service"
	"tenant_auth_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/onboarding", h.Get)
	rg.POST("/onboarding/steps/:stepID/complete", h.CompleteStep)
}

func (h *Handler) Get(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	tenantID, ok := id.TenantID()
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "tenant not set", nil)
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), id.UserID(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rec)
}

func (h *Handler) CompleteStep(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	tenantID, ok := id.TenantID()
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "tenant not set", nil)
		return
	}
	rec, err := h.svc.CompleteStep(c.Request.Context(), id.UserID(), tenantID, c.Param("stepID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rec)
}
