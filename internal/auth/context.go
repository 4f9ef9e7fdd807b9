package auth

import "context"

type principalKey struct{}

// ContextWithPrincipal returns ctx carrying the authenticated principal.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal set by ContextWithPrincipal.
// Handlers behind the authentication middleware can rely on it being there.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.User.ID != ""
}
