package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/crm"
	"tenantcrm.dev/internal/obs"
	"tenantcrm.dev/internal/tenancy"
)

// badRequest marks malformed input detected by the HTTP layer itself.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeServiceError maps domain errors onto status codes. Anything it does
// not recognise is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if reason, ok := auth.RejectionReason(err); ok {
		writeRejection(w, r, reason)
		return
	}
	var verr *crm.ValidationError
	var breq badRequest
	switch {
	case errors.As(err, &verr):
		payload := map[string]any{"error": "validation failed", "fields": verr.Fields}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.As(err, &breq):
		writeError(w, r, http.StatusBadRequest, breq.msg)
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error()+": "))
	case errors.Is(err, tenancy.ErrInvalidQuery):
		writeError(w, r, http.StatusBadRequest, "invalid query")
	case errors.Is(err, crm.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		obs.Logger().Error().
			Err(err).
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeRejection(w http.ResponseWriter, r *http.Request, reason auth.Reason) {
	switch reason {
	case auth.ReasonAuthenticationRequired:
		w.Header().Set("WWW-Authenticate", `Bearer realm="tenantcrm"`)
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case auth.ReasonForbidden:
		writeError(w, r, http.StatusForbidden, "forbidden")
	default:
		// Bad tokens, inactive users and tenant mismatches share one body.
		w.Header().Set("WWW-Authenticate", `Bearer realm="tenantcrm", error="invalid_token"`)
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	}
}

// readBody returns the raw JSON object in the request body.
func readBody(r *http.Request) (json.RawMessage, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest{"request body too large"}
		}
		return nil, badRequest{"could not read request body"}
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, badRequest{"request body is required"}
	}
	if !strings.HasPrefix(trimmed, "{") || !json.Valid(data) {
		return nil, badRequest{"request body must be a JSON object"}
	}
	return data, nil
}

// decodeJSON decodes a JSON object into dst, rejecting unknown fields and
// trailing data.
func decodeJSON(r *http.Request, dst any) error {
	raw, err := readBody(r)
	if err != nil {
		return err
	}
	return decodeInto(raw, dst)
}

func decodeInto(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &crm.ValidationError{Fields: map[string]string{typeErr.Field: "has the wrong type"}}
		}
		return badRequest{"invalid JSON: " + err.Error()}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest{"unexpected data after JSON body"}
	}
	return nil
}
