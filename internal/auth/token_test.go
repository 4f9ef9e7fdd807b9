package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-for-token-service"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTokens(t *testing.T, clock *fakeClock, opts ...TokenOption) *TokenService {
	t.Helper()
	opts = append([]TokenOption{WithClock(clock.Now), WithTokenTTL(time.Hour)}, opts...)
	svc, err := NewTokenService(testSecret, opts...)
	require.NoError(t, err)
	return svc
}

var sampleClaims = Claims{UserID: "u1", TenantID: "t1", RoleID: "r1", Email: "a@example.com"}

func TestTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestTokens(t, clock)

	token, exp, err := svc.Issue(sampleClaims)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), exp)

	sess, err := svc.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, sampleClaims, sess.Claims)
	assert.NotEmpty(t, sess.TokenID)
	assert.True(t, sess.ExpiresAt.Equal(exp))
	assert.True(t, sess.IssuedAt.Equal(clock.t))
}

func TestTokenExpiryBoundary(t *testing.T) {
	issued := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issued}
	svc := newTestTokens(t, clock)

	token, _, err := svc.Issue(sampleClaims)
	require.NoError(t, err)

	clock.t = issued.Add(time.Hour - time.Second)
	_, err = svc.Validate(context.Background(), token)
	require.NoError(t, err)

	clock.t = issued.Add(time.Hour + time.Second)
	_, err = svc.Validate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssueTruncatesToSeconds(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 900_000_000, time.UTC)}
	svc := newTestTokens(t, clock)
	_, exp, err := svc.Issue(sampleClaims)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC), exp)
}

func TestTokenRejectsForeignSignature(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestTokens(t, clock)

	other, err := NewTokenService("another-secret", WithClock(clock.Now))
	require.NoError(t, err)
	token, _, err := other.Issue(sampleClaims)
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsTamperedPayload(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestTokens(t, clock)
	token, _, err := svc.Issue(sampleClaims)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	claims["tenantId"] = "t2"
	forged, err := json.Marshal(claims)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	_, err = svc.Validate(context.Background(), strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsUnsignedAndWrongIssuer(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestTokens(t, clock)

	tc := tokenClaims{
		Claims: sampleClaims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			Subject:   sampleClaims.UserID,
			IssuedAt:  jwt.NewNumericDate(clock.t),
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, tc).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)

	elsewhere := newTestTokens(t, clock, WithIssuer("someone-else"))
	token, _, err := elsewhere.Issue(sampleClaims)
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsGarbage(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestTokens(t, clock)
	for _, raw := range []string{"", "   ", "abc", "a.b.c"} {
		_, err := svc.Validate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestTokenRevocation(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	deny := NewMemoryDenylist()
	deny.now = clock.Now
	svc := newTestTokens(t, clock, WithDenylist(deny))
	require.True(t, svc.SupportsRevocation())

	token, _, err := svc.Issue(sampleClaims)
	require.NoError(t, err)
	sess, err := svc.Validate(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), sess))
	_, err = svc.Validate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)

	other, _, err := svc.Issue(sampleClaims)
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), other)
	require.NoError(t, err)
}

func TestTokenDenylistOutageFailsClosed(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	deny, mr := newMiniredisDenylist(t)
	svc := newTestTokens(t, clock, WithDenylist(deny))

	token, _, err := svc.Issue(sampleClaims)
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), token)
	require.NoError(t, err)

	mr.Close()
	_, err = svc.Validate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenServiceValidation(t *testing.T) {
	_, err := NewTokenService("  ")
	require.Error(t, err)
	_, err = NewTokenService(testSecret, WithTokenTTL(0))
	require.Error(t, err)

	svc, err := NewTokenService(testSecret)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, svc.TTL())
	assert.False(t, svc.SupportsRevocation())

	_, _, err = svc.Issue(Claims{UserID: "u1"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
