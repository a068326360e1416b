package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
)

// Service issues and redeems refresh tokens. Callers only ever see raw
// tokens; the repository only ever sees their hashes.
type Service struct {
	repo  Repository
	clock clock.Clock
	ttl   time.Duration
}

func NewService(r Repository, c clock.Clock, ttl time.Duration) *Service {
	if c == nil {
		c = clock.Real{}
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{repo: r, clock: c, ttl: ttl}
}

// Identity is what a refresh session remembers about the signed-in user.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
}

// CreateSession stores a new refresh session and returns the refresh token
func (s *Service) CreateSession(ctx context.Context, id Identity) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	r := hex.EncodeToString(b)
	now := s.clock.Now()
	sess := &Session{
		TokenHash:   HashToken(r),
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return r, nil
}

// ValidateRefresh returns the session if refresh token is valid and not expired
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	hash := HashToken(refresh)
	sess, err := s.repo.GetByHash(ctx, hash)
	if err != nil || sess == nil {
		return nil, err
	}
	if s.clock.Now().After(sess.ExpiresAt) {
		_ = s.repo.DeleteByHash(ctx, hash)
		return nil, nil
	}
	return sess, nil
}

// Rotate redeems refresh and issues a replacement. A token is accepted once;
// (nil, "", nil) means it is unknown, already used or expired.
func (s *Service) Rotate(ctx context.Context, refresh string) (*Session, string, error) {
	sess, err := s.repo.ConsumeByHash(ctx, HashToken(refresh))
	if err != nil || sess == nil {
		return nil, "", err
	}
	if s.clock.Now().After(sess.ExpiresAt) {
		return nil, "", nil
	}
	next, err := s.CreateSession(ctx, Identity{UserID: sess.UserID, DisplayName: sess.DisplayName, Email: sess.Email})
	if err != nil {
		return nil, "", err
	}
	return sess, next, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByHash(ctx, HashToken(refresh))
}

// RevokeAll ends every refresh session of userID and reports how many.
func (s *Service) RevokeAll(ctx context.Context, userID string) (int, error) {
	return s.repo.DeleteByUser(ctx, userID)
}
