package httpkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenant_auth_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type jwtSecret string

func (s jwtSecret) GetJWTAccessSecret() string { return string(s) }

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthRequiredSetsIdentity(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":       userID.String(),
		"type":      "access",
		"roles":     []string{"admin"},
		"tenant_id": tenantID.String(),
		"sid":       "01HZZZ",
		"exp":       time.Now().Add(time.Minute).Unix(),
	})

	r := gin.New()
	var got Identity
	r.GET("/me", AuthRequired(jwtSecret("s3cret")), func(c *gin.Context) {
		got = GetIdentity(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got.UserID() != userID || !got.HasRole("admin") || got.SessionID() != "01HZZZ" {
		t.Fatalf("unexpected identity %#v", got)
	}
	if tid, ok := got.TenantID(); !ok || tid != tenantID {
		t.Fatalf("expected tenant %s, got %s", tenantID, tid)
	}
}

func TestAuthRequiredRejectsRefreshType(t *testing.T) {
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "refresh",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	r := gin.New()
	r.GET("/me", AuthRequired(jwtSecret("s3cret")), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRoleAcceptsAnyListedRole(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) {
		c.Set(ContextUserIDKey, uuid.New())
		c.Set(ContextRolesKey, []string{"owner"})
	}, RequireRole("admin", "owner"), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireTenantParamMatchesTokenTenant(t *testing.T) {
	tenantID := uuid.New()
	newRouter := func(tenant *uuid.UUID) *gin.Engine {
		r := gin.New()
		r.GET("/orgs/:orgID", func(c *gin.Context) {
			c.Set(ContextUserIDKey, uuid.New())
			if tenant != nil {
				c.Set(ContextTenantIDKey, *tenant)
			}
		}, RequireTenantParam("orgID"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	other := uuid.New()
	cases := []struct {
		name   string
		tenant *uuid.UUID
		path   string
		want   int
	}{
		{"same tenant", &tenantID, "/orgs/" + tenantID.String(), http.StatusNoContent},
		{"other tenant", &other, "/orgs/" + tenantID.String(), http.StatusForbidden},
		{"no tenant", nil, "/orgs/" + tenantID.String(), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(tc.tenant).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleErrorWritesCodeAndDetails(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		err := apperr.Forbidden("membership is not active").
			WithCode("MEMBERSHIP_INACTIVE").
			WithDetail("status", "inactive")
		HandleError(c, err)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "MEMBERSHIP_INACTIVE" || body.Details["status"] != "inactive" {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestHandleErrorHidesUntypedErrors(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { HandleError(c, errors.New("pq: connection refused")) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "internal server error" {
		t.Fatalf("expected generic message, got %q", body.Error)
	}
}

func TestRateLimitRejectsOverBurst(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1.0/30.0), 2, nil)
	r := gin.New()
	r.GET("/x", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		r.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") != "30" {
		t.Fatalf("expected Retry-After 30, got %q", last.Header().Get("Retry-After"))
	}
}

func TestRateLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(1), 1, nil)
	limiter.now = func() time.Time { return now }

	limiter.getLimiter("10.0.0.1")
	now = now.Add(limiter.idleTTL + time.Second)
	limiter.getLimiter("10.0.0.2")

	if _, ok := limiter.limiters.Load("10.0.0.1"); ok {
		t.Fatalf("expected idle bucket to be evicted")
	}
	if _, ok := limiter.limiters.Load("10.0.0.2"); !ok {
		t.Fatalf("expected fresh bucket to be kept")
	}
}
