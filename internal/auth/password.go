package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is bcrypt's input limit; longer inputs are refused rather
// than silently truncated.
const maxPasswordBytes = 72

var errEmptyHash = errors.New("password hash is empty")

// HashPassword returns the bcrypt hash stored for a user.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(password) > maxPasswordBytes:
		return "", fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. Any mismatch,
// including an empty hash, is an error.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errEmptyHash
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// dummyHash is compared against when the email is unknown so that a miss
// costs roughly the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tenantcrm-timing-equaliser"), bcrypt.DefaultCost)
