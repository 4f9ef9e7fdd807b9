package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/obs"
)

// Authenticator turns a bearer credential into an authorized Principal. The
// checks run in a fixed order and each one only starts after the previous
// succeeded.
type Authenticator struct {
	tokens *TokenService
	store  Store
	roles  *RoleCache
	audit  audit.Sink
	now    func() time.Time
}

// NewAuthenticator wires the token service, the auth store and the role
// cache. A nil sink disables auditing of logins.
func NewAuthenticator(tokens *TokenService, store Store, roles *RoleCache, sink audit.Sink) (*Authenticator, error) {
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	if roles == nil {
		roles = NewRoleCache(store, DefaultRoleCacheSize, minDuration(DefaultRoleCacheTTL, tokens.TTL()))
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Authenticator{tokens: tokens, store: store, roles: roles, audit: sink, now: time.Now}, nil
}

// Tokens exposes the token service.
func (a *Authenticator) Tokens() *TokenService { return a.tokens }

// Roles exposes the role cache so that role mutations can invalidate it.
func (a *Authenticator) Roles() *RoleCache { return a.roles }

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// Authenticate runs the chain up to TokenValidated plus the user and tenant
// checks. Failures are *RejectError values; store failures other than a
// missing row are returned unwrapped.
func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (Principal, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return Principal{}, a.rejected(ReasonAuthenticationRequired, nil)
	}

	sess, err := a.tokens.Validate(ctx, token)
	if err != nil {
		return Principal{}, a.rejected(ReasonInvalidOrExpiredToken, err)
	}

	user, err := a.store.FindUser(ctx, sess.TenantID, sess.UserID)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, a.rejected(ReasonUserInactiveOrTenantMismatch, err)
	}
	if err != nil {
		return Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive || user.TenantID != sess.TenantID {
		return Principal{}, a.rejected(ReasonUserInactiveOrTenantMismatch, nil)
	}

	tenant, err := a.store.GetTenant(ctx, user.TenantID)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, a.rejected(ReasonUserInactiveOrTenantMismatch, err)
	}
	if err != nil {
		return Principal{}, fmt.Errorf("load tenant: %w", err)
	}
	if !tenant.IsActive {
		return Principal{}, a.rejected(ReasonUserInactiveOrTenantMismatch, nil)
	}

	role, err := a.roles.Role(ctx, user.TenantID, user.RoleID)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, a.rejected(ReasonUserInactiveOrTenantMismatch, err)
	}
	if err != nil {
		return Principal{}, fmt.Errorf("load role: %w", err)
	}

	return Principal{User: user, Role: role, Session: sess}, nil
}

// Authorize is the PermissionChecked step.
func (a *Authenticator) Authorize(p Principal, resource Resource, action Action) error {
	if !p.Can(resource, action) {
		return a.rejected(ReasonForbidden, fmt.Errorf("%s:%s", resource, action))
	}
	return nil
}

func (a *Authenticator) rejected(reason Reason, err error) error {
	obs.AuthRejected(string(reason))
	return reject(reason, err)
}

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
	Role      Role      `json:"role"`
}

// Login verifies credentials and issues a token. Unknown email, wrong
// password, inactive user and inactive tenant are indistinguishable.
func (a *Authenticator) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		a.loginFailed(ctx, "", email)
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := a.store.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_ = VerifyPassword(string(dummyHash), password)
		a.loginFailed(ctx, "", email)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil || !user.IsActive {
		a.loginFailed(ctx, user.TenantID, email)
		return LoginResult{}, ErrInvalidCredentials
	}

	tenant, err := a.store.GetTenant(ctx, user.TenantID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return LoginResult{}, fmt.Errorf("load tenant: %w", err)
	}
	if err != nil || !tenant.IsActive {
		a.loginFailed(ctx, user.TenantID, email)
		return LoginResult{}, ErrInvalidCredentials
	}

	role, err := a.roles.Role(ctx, user.TenantID, user.RoleID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load role: %w", err)
	}

	token, exp, err := a.tokens.Issue(Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		RoleID:   user.RoleID,
		Email:    user.Email,
	})
	if err != nil {
		return LoginResult{}, err
	}

	at := a.now().UTC()
	if err := a.store.TouchLogin(ctx, user.TenantID, user.ID, at); err != nil {
		obs.Logger().Warn().Err(err).Str("user_id", user.ID).Msg("record last login failed")
	} else {
		user.LastLoginAt = &at
	}

	a.audit.Record(ctx, audit.Entry{
		TenantID:     user.TenantID,
		ActorID:      user.ID,
		Action:       audit.ActionLogin,
		ResourceType: string(ResourceUsers),
		ResourceID:   user.ID,
	})
	return LoginResult{Token: token, ExpiresAt: exp, User: user, Role: role}, nil
}

func (a *Authenticator) loginFailed(ctx context.Context, tenantID, email string) {
	a.audit.Record(ctx, audit.Entry{
		TenantID:     tenantID,
		Action:       audit.ActionLoginFailed,
		ResourceType: string(ResourceUsers),
		After:        audit.Snapshot(map[string]string{"email": email}),
	})
}

// Logout revokes the principal's session when revocation is configured.
func (a *Authenticator) Logout(ctx context.Context, p Principal) error {
	if err := a.tokens.Revoke(ctx, p.Session); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	a.audit.Record(ctx, audit.Entry{
		TenantID:     p.TenantID(),
		ActorID:      p.UserID(),
		Action:       audit.ActionLogout,
		ResourceType: string(ResourceUsers),
		ResourceID:   p.UserID(),
	})
	return nil
}

func minDuration(a, b time.Duration) time.Duration {
	if b > 0 && b < a {
		return b
	}
	return a
}
