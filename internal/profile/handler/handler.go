package handler

import (
	"net/http"

	"tenant_auth_backend/internal/profile/repository"
	"tenant_auth_backend/internal/profile/service"
	"tenant_auth_backend/internal/profile/transport"
	"tenant_auth_backend/platform/httpkit"
	"tenant_auth_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgTenantNotSet     = "tenant not set"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.GetProfile)
	rg.PATCH("/profile", h.UpdateProfile)
	rg.GET("/profile/preferences", h.GetPreferences)
	rg.PATCH("/profile/preferences", h.UpdatePreferences)
	rg.POST("/profile/avatar/presign", h.PresignAvatar)
	rg.POST("/profile/avatar", h.ConfirmAvatar)
	rg.GET("/profile/avatar", h.GetAvatar)
	rg.DELETE("/profile/avatar", h.DeleteAvatar)
}

// scope resolves the caller and the organization the token was issued for.
func scope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return uuid.Nil, uuid.Nil, false
	}
	tenantID, ok := id.TenantID()
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgTenantNotSet, nil)
		return uuid.Nil, uuid.Nil, false
	}
	return id.UserID(), tenantID, true
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	p, err := h.svc.GetProfile(c.Request.Context(), userID, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	status, err := h.svc.CompletionStatus(c.Request.Context(), userID, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(p, status))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	var req transport.UpdateProfileRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.svc.UpdateProfile(c.Request.Context(), userID, orgID, service.Update{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		JobTitle:  req.JobTitle,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	status, err := h.svc.CompletionStatus(c.Request.Context(), userID, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(p, status))
}

func (h *Handler) GetPreferences(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	prefs, err := h.svc.Preferences(c.Request.Context(), userID, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, prefs)
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	var req transport.UpdatePreferencesRequest
	if !h.bind(c, &req) {
		return
	}
	prefs, err := h.svc.UpdatePreferences(c.Request.Context(), userID, orgID, repository.PreferenceDoc{
		Language:           req.Language,
		Timezone:           req.Timezone,
		EmailNotifications: req.EmailNotifications,
		InAppNotifications: req.InAppNotifications,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, prefs)
}

func (h *Handler) PresignAvatar(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	var req transport.PresignAvatarRequest
	if !h.bind(c, &req) {
		return
	}
	presigned, err := h.svc.PresignAvatarUpload(c.Request.Context(), userID, orgID, req.FileName, req.ContentType, req.SizeBytes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, presigned)
}

func (h *Handler) ConfirmAvatar(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	var req transport.ConfirmAvatarRequest
	if !h.bind(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.svc.ConfirmAvatar(c.Request.Context(), userID, orgID, req.FileKey)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetAvatar(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	presigned, err := h.svc.AvatarDownloadURL(c.Request.Context(), userID, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, presigned)
}

func (h *Handler) DeleteAvatar(c *gin.Context) {
	userID, orgID, ok := scope(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteAvatar(c.Request.Context(), userID, orgID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func toResponse(p repository.Profile, status service.CompletionStatus) transport.ProfileResponse {
	return transport.ProfileResponse{
		UserID:         p.UserID.String(),
		OrganizationID: p.OrganizationID.String(),
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Phone:          p.Phone,
		JobTitle:       p.JobTitle,
		HasAvatar:      p.AvatarKey != nil,
		Completion: transport.CompletionResponse{
			IsComplete:    status.IsComplete,
			MissingFields: status.MissingFields,
		},
		UpdatedAt: p.UpdatedAt,
	}
}
