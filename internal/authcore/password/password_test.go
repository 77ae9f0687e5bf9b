package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("Str0ng!pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := h.Compare(hash, "Str0ng!pass"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "wrong"); err != ErrMismatch {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestMatchesAny(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	old1, _ := h.Hash("Old1!pass")
	old2, _ := h.Hash("Old2!pass")

	if !h.MatchesAny([]string{old1, old2}, "Old2!pass") {
		t.Fatal("expected history match")
	}
	if h.MatchesAny([]string{old1, old2}, "New3!pass") {
		t.Fatal("expected no history match")
	}
}
