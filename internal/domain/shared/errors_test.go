package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "tenant acme not found")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrForbidden))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("resolve: %w", NewDomainError("INVALID_INPUT", "bad contract id"))
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("does not match plain errors", func(t *testing.T) {
		assert.False(t, errors.Is(errors.New("INVALID_INPUT"), ErrInvalidInput))
	})
}
