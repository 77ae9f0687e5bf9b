// Package token mints opaque secrets, ids and signed access tokens.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const AccessTokenType = "access"

// GenerateRandomToken returns size random bytes, base64url encoded.
func GenerateRandomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256 is the at-rest form of opaque tokens.
func HashSHA256(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// NewID returns a lexically sortable identifier for sessions and challenges.
func NewID() string {
	return ulid.Make().String()
}

// AccessClaims is what an access token asserts.
type AccessClaims struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	SessionID string
	Roles     []string
}

// Signer issues HS256 access tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of tokens minted by s.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

func (s *Signer) Sign(c AccessClaims) (string, error) {
	now := s.now()
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := jwt.MapClaims{
		"sub":   c.UserID.String(),
		"type":  AccessTokenType,
		"roles": roles,
		"sid":   c.SessionID,
		"exp":   now.Add(s.ttl).Unix(),
		"iat":   now.Unix(),
	}
	if c.TenantID != uuid.Nil {
		claims["tenant_id"] = c.TenantID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
