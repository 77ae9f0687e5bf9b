// Package store holds the Redis-backed session, login-attempt and MFA
// challenge stores used by the auth core.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tenant_auth_backend/internal/authcore"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix   = "auth:session:"
	refreshPrefix   = "auth:refresh:"
	attemptPrefix   = "auth:attempts:"
	challengePrefix = "auth:mfa_challenge:"
)

type sessionRecord struct {
	Session     authcore.Session `json:"session"`
	RefreshHash string           `json:"refreshHash"`
}

// Sessions stores sessions under their id and indexes them by refresh hash.
// Both keys expire with the session.
type Sessions struct {
	rdb redis.Cmdable
}

func NewSessions(rdb redis.Cmdable) *Sessions {
	return &Sessions{rdb: rdb}
}

func (s *Sessions) Save(ctx context.Context, session authcore.Session, refreshHash string) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}
	payload, err := json.Marshal(sessionRecord{Session: session, RefreshHash: refreshHash})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionPrefix+session.ID, payload, ttl)
		p.Set(ctx, refreshPrefix+refreshHash, session.ID, ttl)
		return nil
	})
	return err
}

func (s *Sessions) Get(ctx context.Context, id string) (authcore.Session, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return authcore.Session{}, err
	}
	return rec.Session, nil
}

func (s *Sessions) SessionIDForRefresh(ctx context.Context, refreshHash string) (string, error) {
	id, err := s.rdb.Get(ctx, refreshPrefix+refreshHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", authcore.ErrSessionNotFound
	}
	return id, err
}

// RotateRefresh swaps the refresh index entry; the old hash stops working at once.
func (s *Sessions) RotateRefresh(ctx context.Context, session authcore.Session, oldHash, newHash string) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return authcore.ErrSessionNotFound
	}
	payload, err := json.Marshal(sessionRecord{Session: session, RefreshHash: newHash})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, refreshPrefix+oldHash)
		p.Set(ctx, refreshPrefix+newHash, session.ID, ttl)
		p.Set(ctx, sessionPrefix+session.ID, payload, ttl)
		return nil
	})
	return err
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	rec, err := s.record(ctx, id)
	if err != nil {
		return err
	}
	return s.rdb.Del(ctx, sessionPrefix+id, refreshPrefix+rec.RefreshHash).Err()
}

func (s *Sessions) record(ctx context.Context, id string) (sessionRecord, error) {
	raw, err := s.rdb.Get(ctx, sessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return sessionRecord{}, authcore.ErrSessionNotFound
	}
	if err != nil {
		return sessionRecord{}, err
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return sessionRecord{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return rec, nil
}

// Attempts is a fixed-window failure counter. The window starts at the
// first failure.
type Attempts struct {
	rdb redis.Cmdable
}

func NewAttempts(rdb redis.Cmdable) *Attempts {
	return &Attempts{rdb: rdb}
}

func (a *Attempts) Failures(ctx context.Context, key string) (int, error) {
	raw, err := a.rdb.Get(ctx, attemptPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (a *Attempts) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	n, err := a.rdb.Incr(ctx, attemptPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := a.rdb.Expire(ctx, attemptPrefix+key, window).Err(); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

func (a *Attempts) Reset(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, attemptPrefix+key).Err()
}

// Challenges keeps pending MFA challenges until they expire or complete.
type Challenges struct {
	rdb redis.Cmdable
}

func NewChallenges(rdb redis.Cmdable) *Challenges {
	return &Challenges{rdb: rdb}
}

func (c *Challenges) Put(ctx context.Context, challenge authcore.PendingChallenge) error {
	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge %s already expired", challenge.ID)
	}
	payload, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, challengePrefix+challenge.ID, payload, ttl).Err()
}

func (c *Challenges) Get(ctx context.Context, id string) (authcore.PendingChallenge, error) {
	raw, err := c.rdb.Get(ctx, challengePrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return authcore.PendingChallenge{}, authcore.ErrChallengeNotFound
	}
	if err != nil {
		return authcore.PendingChallenge{}, err
	}
	var out authcore.PendingChallenge
	if err := json.Unmarshal(raw, &out); err != nil {
		return authcore.PendingChallenge{}, fmt.Errorf("decode challenge %s: %w", id, err)
	}
	return out, nil
}

func (c *Challenges) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, challengePrefix+id).Err()
}

var (
	_ authcore.SessionStore   = (*Sessions)(nil)
	_ authcore.AttemptTracker = (*Attempts)(nil)
	_ authcore.ChallengeStore = (*Challenges)(nil)
)
