package handler

import (
	"net/http"
	"strconv"

	"tenant_auth_backend/internal/organization/domain"
	"tenant_auth_backend/internal/organization/service"
	"tenant_auth_backend/internal/organization/transport"
	"tenant_auth_backend/platform/httpkit"
	"tenant_auth_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid organization id"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the admin organization routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/organizations", h.Create)
	rg.GET("/organizations", h.List)
	rg.GET("/organizations/:orgID", h.Get)
	rg.PATCH("/organizations/:orgID/status", h.UpdateStatus)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	org, err := h.svc.CreateOrganization(c.Request.Context(), service.CreateInput{
		Name:              req.Name,
		Slug:              req.Slug,
		AllowedDomains:    req.AllowedDomains,
		RequireInvitation: req.RequireInvitation,
		Tier:              domain.Tier(req.SubscriptionTier),
		MaxUsers:          req.MaxUsers,
		Features:          req.Features,
		Settings: domain.Settings{
			RequireProfileCompletion: req.RequireProfileCompletion,
			OnboardingEnabled:        req.OnboardingEnabled,
		},
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, h.toResponse(org))
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orgs, err := h.svc.ListOrganizations(c.Request.Context(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.ListOrganizationsResponse{Organizations: make([]transport.OrganizationResponse, 0, len(orgs))}
	for _, org := range orgs {
		resp.Organizations = append(resp.Organizations, h.toResponse(org))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseOrgID(c)
	if !ok {
		return
	}
	org, err := h.svc.GetOrganization(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, h.toResponse(org))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseOrgID(c)
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	if httpkit.HandleError(c, h.svc.UpdateStatus(c.Request.Context(), id, domain.Status(req.Status))) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toResponse(org domain.Organization) transport.OrganizationResponse {
	features := h.svc.Features(org)
	domains := org.AllowedDomains
	if domains == nil {
		domains = []string{}
	}
	return transport.OrganizationResponse{
		ID:                       org.ID.String(),
		Name:                     org.Name,
		Slug:                     org.Slug,
		Status:                   string(org.Status),
		AllowedDomains:           domains,
		RequireInvitation:        org.RequireInvitation,
		SubscriptionTier:         string(org.SubscriptionTier),
		MaxUsers:                 org.Limits.MaxUsers,
		Users:                    org.Usage.Users,
		RequireProfileCompletion: org.Settings.RequireProfileCompletion,
		OnboardingEnabled:        org.Settings.OnboardingEnabled,
		Features: transport.FeaturesResponse{
			AdvancedReporting: features.AdvancedReporting,
			APIAccess:         features.APIAccess,
			AdvancedFeatures:  features.AdvancedFeatures,
		},
		CreatedAt: org.CreatedAt,
	}
}

func parseOrgID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("orgID"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}
