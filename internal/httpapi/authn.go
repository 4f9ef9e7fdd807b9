package httpapi

import (
	"net/http"

	"tenantcrm.dev/internal/auth"
)

const authHeader = "Authorization"

// principalHandler serves a request that has passed authentication.
type principalHandler func(w http.ResponseWriter, r *http.Request, p auth.Principal)

// authenticated admits any valid session.
func (a *API) authenticated(next principalHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.auth.Authenticate(r.Context(), r.Header.Get(authHeader))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), p)
		next(w, r.WithContext(ctx), p)
	})
}

// withAuth additionally requires the principal's role to grant action on
// resource. Both checks run before the handler touches any data.
func (a *API) withAuth(resource auth.Resource, action auth.Action, next principalHandler) http.Handler {
	return a.authenticated(func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		if err := a.auth.Authorize(p, resource, action); err != nil {
			writeServiceError(w, r, err)
			return
		}
		next(w, r, p)
	})
}
