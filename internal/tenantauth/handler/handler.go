package handler

import (
	"context"
	"net/http"
	"time"

	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/internal/tenantauth/service"
	"tenant_auth_backend/internal/tenantauth/transport"
	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/httpkit"
	"tenant_auth_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidOrgID     = "invalid organization id"
	msgInvalidUserID    = "invalid user id"
	msgNoTenant         = "token is not scoped to an organization"
	msgMissingRefresh   = "refresh token required"

	headerDeviceFingerprint = "X-Device-Fingerprint"
)

// TenantAuth is the orchestration surface the handler drives.
type TenantAuth interface {
	RegisterTenantUser(ctx context.Context, data service.UserData, organizationID uuid.UUID, opts service.RegisterOptions) (service.RegistrationResult, error)
	LoginTenantUser(ctx context.Context, creds authcore.Credentials, organizationID uuid.UUID, opts service.LoginOptions) (service.LoginResponse, error)
	CompleteTenantMFA(ctx context.Context, challengeID, code string, organizationID uuid.UUID) (service.LoginResult, error)
	LogoutTenantUser(ctx context.Context, sessionID string) error
	RefreshTenantSession(ctx context.Context, refreshToken string) (authcore.Tokens, authcore.Session, error)
	RequestTenantPasswordReset(ctx context.Context, email string, organizationID uuid.UUID) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	EnableTenantMFA(ctx context.Context, userID, organizationID uuid.UUID) (authcore.MFAEnrollment, error)
	ConfirmTenantMFA(ctx context.Context, userID, organizationID uuid.UUID, methodID, code string) error
	AddTenantMember(ctx context.Context, inviterID, organizationID uuid.UUID, data service.UserData, roles []string, reqCtx service.RequestContext) (service.RegistrationResult, error)
	ChangeMemberStatus(ctx context.Context, actorID, organizationID, userID uuid.UUID, rawStatus string) (identity.Membership, error)
}

type Handler struct {
	svc    TenantAuth
	val    *validator.Validator
	cookie config.CookieConfig
}

func New(svc TenantAuth, val *validator.Validator, cookie config.CookieConfig) *Handler {
	return &Handler{svc: svc, val: val, cookie: cookie}
}

// RegisterPublicRoutes mounts the unauthenticated auth routes. Callers put
// the auth rate limiter in front of rg.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/organizations/:orgID/auth/register", h.Register)
	rg.POST("/organizations/:orgID/auth/login", h.Login)
	rg.POST("/organizations/:orgID/auth/mfa/complete", h.CompleteMFA)
	rg.POST("/organizations/:orgID/auth/password/forgot", h.ForgotPassword)
	rg.POST("/auth/password/reset", h.ResetPassword)
	rg.POST("/auth/email/verify", h.VerifyEmail)
	rg.POST("/auth/refresh", h.Refresh)
}

// RegisterProtectedRoutes mounts the session routes and the member
// management routes. Member routes only accept admin tokens issued for the
// organization in the path.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/logout", h.Logout)
	rg.POST("/auth/mfa/enable", h.EnableMFA)
	rg.POST("/auth/mfa/confirm", h.ConfirmMFA)

	members := rg.Group("/organizations/:orgID/members")
	members.Use(httpkit.RequireTenantParam("orgID"), httpkit.RequireRole(identity.RoleAdmin))
	members.POST("", h.AddMember)
	members.PATCH("/:userID/status", h.ChangeMemberStatus)
}

func (h *Handler) Register(c *gin.Context) {
	orgID, ok := parseUUIDParam(c, "orgID", msgInvalidOrgID)
	if !ok {
		return
	}
	var req transport.RegisterRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.RegisterTenantUser(c.Request.Context(), service.UserData{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		JobTitle:  req.JobTitle,
	}, orgID, service.RegisterOptions{
		RequestContext:     requestContext(c),
		InvitationCode:     req.InvitationCode,
		RegistrationSource: req.RegistrationSource,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	h.setRefreshCookie(c, result.Tokens.RefreshToken)
	httpkit.Created(c, result)
}

// Login answers 200 with either the enriched result or the MFA challenge.
func (h *Handler) Login(c *gin.Context) {
	orgID, ok := parseUUIDParam(c, "orgID", msgInvalidOrgID)
	if !ok {
		return
	}
	var req transport.LoginRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.LoginTenantUser(c.Request.Context(), authcore.Credentials{
		Email:    req.Email,
		Password: req.Password,
	}, orgID, service.LoginOptions{RequestContext: requestContext(c)})
	if httpkit.HandleError(c, err) {
		return
	}
	if resp.RequiresMFA() {
		httpkit.OK(c, resp.Challenge)
		return
	}

	h.setRefreshCookie(c, resp.Result.Tokens.RefreshToken)
	httpkit.OK(c, resp.Result)
}

func (h *Handler) CompleteMFA(c *gin.Context) {
	orgID, ok := parseUUIDParam(c, "orgID", msgInvalidOrgID)
	if !ok {
		return
	}
	var req transport.CompleteMFARequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.CompleteTenantMFA(c.Request.Context(), req.ChallengeID, req.Code, orgID)
	if httpkit.HandleError(c, err) {
		return
	}

	h.setRefreshCookie(c, result.Tokens.RefreshToken)
	httpkit.OK(c, result)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	orgID, ok := parseUUIDParam(c, "orgID", msgInvalidOrgID)
	if !ok {
		return
	}
	var req transport.ForgotPasswordRequest
	if !h.bind(c, &req) {
		return
	}

	if httpkit.HandleError(c, h.svc.RequestTenantPasswordReset(c.Request.Context(), req.Email, orgID)) {
		return
	}
	httpkit.OK(c, transport.MessageResponse{Message: "if the account exists, a reset link will be sent"})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req transport.ResetPasswordRequest
	if !h.bind(c, &req) {
		return
	}

	if httpkit.HandleError(c, h.svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)) {
		return
	}
	httpkit.OK(c, transport.MessageResponse{Message: "password reset"})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var req transport.VerifyEmailRequest
	if !h.bind(c, &req) {
		return
	}

	if httpkit.HandleError(c, h.svc.VerifyEmail(c.Request.Context(), req.Token)) {
		return
	}
	httpkit.OK(c, transport.MessageResponse{Message: "email verified"})
}

// Refresh reads the refresh cookie first and falls back to the JSON body.
func (h *Handler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cookie.GetRefreshCookieName())
	if refreshToken == "" {
		var req transport.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		httpkit.Error(c, http.StatusUnauthorized, msgMissingRefresh, nil)
		return
	}

	tokens, session, err := h.svc.RefreshTenantSession(c.Request.Context(), refreshToken)
	if err != nil {
		h.clearRefreshCookie(c)
		httpkit.HandleError(c, err)
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken)
	httpkit.OK(c, transport.RefreshResponse{Tokens: tokens, Session: session})
}

func (h *Handler) Logout(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	if httpkit.HandleError(c, h.svc.LogoutTenantUser(c.Request.Context(), id.SessionID())) {
		return
	}
	h.clearRefreshCookie(c)
	httpkit.OK(c, transport.MessageResponse{Message: "signed out"})
}

func (h *Handler) EnableMFA(c *gin.Context) {
	id, orgID, ok := tenantIdentity(c)
	if !ok {
		return
	}

	enrollment, err := h.svc.EnableTenantMFA(c.Request.Context(), id.UserID(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, enrollment)
}

func (h *Handler) ConfirmMFA(c *gin.Context) {
	id, orgID, ok := tenantIdentity(c)
	if !ok {
		return
	}
	var req transport.ConfirmMFARequest
	if !h.bind(c, &req) {
		return
	}

	if httpkit.HandleError(c, h.svc.ConfirmTenantMFA(c.Request.Context(), id.UserID(), orgID, req.MethodID, req.Code)) {
		return
	}
	httpkit.OK(c, transport.MessageResponse{Message: "mfa enabled"})
}

// AddMember answers 201 with the member only; the admin never receives the
// new member's session.
func (h *Handler) AddMember(c *gin.Context) {
	id, orgID, ok := tenantIdentity(c)
	if !ok {
		return
	}
	var req transport.AddMemberRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.AddTenantMember(c.Request.Context(), id.UserID(), orgID, service.UserData{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		JobTitle:  req.JobTitle,
	}, req.Roles, requestContext(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.MemberResponse{User: result.User, Membership: result.Membership})
}

func (h *Handler) ChangeMemberStatus(c *gin.Context) {
	id, orgID, ok := tenantIdentity(c)
	if !ok {
		return
	}
	userID, ok := parseUUIDParam(c, "userID", msgInvalidUserID)
	if !ok {
		return
	}
	var req transport.MemberStatusRequest
	if !h.bind(c, &req) {
		return
	}

	membership, err := h.svc.ChangeMemberStatus(c.Request.Context(), id.UserID(), orgID, userID, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.MemberStatusResponse{
		UserID:         userID.String(),
		OrganizationID: membership.OrganizationID.String(),
		Status:         string(membership.Status),
	})
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

func (h *Handler) setRefreshCookie(c *gin.Context, value string) {
	if value == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		h.cookie.GetRefreshCookieName(),
		value,
		int(h.cookie.GetRefreshTokenTTL()/time.Second),
		"/",
		h.cookie.GetRefreshCookieDomain(),
		h.cookie.GetRefreshCookieSecure(),
		true,
	)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		h.cookie.GetRefreshCookieName(),
		"",
		-1,
		"/",
		h.cookie.GetRefreshCookieDomain(),
		h.cookie.GetRefreshCookieSecure(),
		true,
	)
}

func requestContext(c *gin.Context) service.RequestContext {
	return service.RequestContext{
		IP:                c.ClientIP(),
		UserAgent:         c.Request.UserAgent(),
		DeviceFingerprint: c.GetHeader(headerDeviceFingerprint),
	}
}

func parseUUIDParam(c *gin.Context, name, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msg, nil)
		return uuid.Nil, false
	}
	return id, true
}

func tenantIdentity(c *gin.Context) (httpkit.Identity, uuid.UUID, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return nil, uuid.Nil, false
	}
	orgID, ok := id.TenantID()
	if !ok {
		httpkit.Error(c, http.StatusForbidden, msgNoTenant, nil)
		return nil, uuid.Nil, false
	}
	return id, orgID, true
}
