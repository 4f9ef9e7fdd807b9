package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, VerifyPassword(hash, "correct horse"))
	assert.Error(t, VerifyPassword(hash, "wrong horse"))
	assert.Error(t, VerifyPassword("", "correct horse"))
}

func TestHashPasswordRejectsUnusableInput(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = HashPassword(strings.Repeat("x", maxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
