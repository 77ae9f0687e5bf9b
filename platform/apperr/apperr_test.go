package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:        http.StatusNotFound,
		KindValidation:      http.StatusBadRequest,
		KindConflict:        http.StatusConflict,
		KindForbidden:       http.StatusForbidden,
		KindUnauthorized:    http.StatusUnauthorized,
		KindTooManyRequests: http.StatusTooManyRequests,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := New(kind, "x").HTTPStatus(); got != want {
			t.Fatalf("kind %s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestCodeAndKindSurviveWrapping(t *testing.T) {
	base := Forbidden("membership is not active").WithCode("MEMBERSHIP_INACTIVE").WithDetail("status", "pending")
	wrapped := fmt.Errorf("login: %w", base)

	if GetKind(wrapped) != KindForbidden {
		t.Fatalf("expected forbidden kind through wrap, got %s", GetKind(wrapped))
	}
	if GetCode(wrapped) != "MEMBERSHIP_INACTIVE" {
		t.Fatalf("expected code through wrap, got %q", GetCode(wrapped))
	}
	e, ok := As(wrapped)
	if !ok || e.Details["status"] != "pending" {
		t.Fatalf("expected status detail, got %#v", e)
	}
}

func TestGetKindOnPlainError(t *testing.T) {
	if GetKind(errors.New("boom")) != KindUnknown {
		t.Fatal("expected unknown kind for plain error")
	}
	if GetCode(nil) != "" {
		t.Fatal("expected empty code for nil error")
	}
}
