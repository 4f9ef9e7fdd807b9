package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSortableAndValid(t *testing.T) {
	a := New()
	b := New()
	assert.True(t, Valid(a))
	assert.True(t, Valid(b))
	assert.Less(t, a, b)
}

func TestValidRejectsGarbage(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-an-id"))
	assert.False(t, Valid(Opaque()))
}
