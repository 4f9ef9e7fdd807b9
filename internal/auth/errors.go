package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken covers malformed, unsigned, expired and revoked tokens
	// alike so callers cannot tell them apart.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

// Reason names the state at which the authentication chain rejected a request.
type Reason string

const (
	ReasonAuthenticationRequired       Reason = "authentication_required"
	ReasonInvalidOrExpiredToken        Reason = "invalid_or_expired_token"
	ReasonUserInactiveOrTenantMismatch Reason = "user_inactive_or_tenant_mismatch"
	ReasonForbidden                    Reason = "forbidden"
)

// RejectError is returned by the Authenticator when a request does not reach
// the Authorized state.
type RejectError struct {
	Reason Reason
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return "auth: rejected (" + string(e.Reason) + "): " + e.Err.Error()
	}
	return "auth: rejected (" + string(e.Reason) + ")"
}

func (e *RejectError) Unwrap() error { return e.Err }

func reject(reason Reason, err error) *RejectError {
	return &RejectError{Reason: reason, Err: err}
}

// RejectionReason extracts the rejection reason from err, if any.
func RejectionReason(err error) (Reason, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
