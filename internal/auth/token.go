package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tenantcrm.dev/internal/ids"
)

const (
	// DefaultTokenTTL is the session lifetime when none is configured.
	DefaultTokenTTL = 24 * time.Hour
	defaultIssuer   = "tenantcrm"
)

// Claims is the identity carried by a session token.
type Claims struct {
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
	RoleID   string `json:"roleId"`
	Email    string `json:"email"`
}

type tokenClaims struct {
	Claims
	jwt.RegisteredClaims
}

// Session is a validated token: its identity claims plus the metadata needed
// to revoke it.
type Session struct {
	Claims
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and validates stateless HS256 session tokens.
type TokenService struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	now      func() time.Time
	denylist Denylist
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
		return nil
	}
}

// WithTokenTTL configures the token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl <= 0 {
			return errors.New("auth: token ttl must be positive")
		}
		s.ttl = ttl
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithDenylist enables revocation checks on Validate.
func WithDenylist(d Denylist) TokenOption {
	return func(s *TokenService) error {
		s.denylist = d
		return nil
	}
}

// NewTokenService constructs a TokenService signing with secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	svc := &TokenService{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs claims into a compact token valid for the configured lifetime.
func (s *TokenService) Issue(claims Claims) (string, time.Time, error) {
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.TenantID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: user and tenant are required", ErrInvalidInput)
	}
	// Token timestamps carry second precision; truncate so exp is exact.
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(s.ttl)
	tc := tokenClaims{
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.Opaque(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate verifies the signature, issuer and expiry of token. Every failure,
// including a revoked token or an unreachable denylist, yields ErrInvalidToken.
func (s *TokenService) Validate(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, s.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || tc.UserID == "" || tc.TenantID == "" || tc.Subject != tc.UserID || tc.IssuedAt == nil {
		return Session{}, ErrInvalidToken
	}
	sess := Session{
		Claims:    tc.Claims,
		TokenID:   tc.ID,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, sess.TokenID)
		if err != nil || revoked {
			return Session{}, ErrInvalidToken
		}
	}
	return sess, nil
}

func (s *TokenService) key(*jwt.Token) (any, error) { return s.secret, nil }

// Revoke denies sess until its natural expiry. Without a denylist it is a
// no-op and the token stays valid until it expires.
func (s *TokenService) Revoke(ctx context.Context, sess Session) error {
	if s.denylist == nil || sess.TokenID == "" {
		return nil
	}
	remaining := sess.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.denylist.Revoke(ctx, sess.TokenID, remaining)
}

// SupportsRevocation reports whether Revoke has any effect.
func (s *TokenService) SupportsRevocation() bool { return s.denylist != nil }
