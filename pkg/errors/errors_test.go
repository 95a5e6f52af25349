package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrNotFound, CodeOf(NotFound("guide", nil)))
	assert.Equal(t, ErrConcurrentModification, CodeOf(ConcurrentModification("material")))

	t.Run("wrapped errors keep their code", func(t *testing.T) {
		err := fmt.Errorf("loading guide: %w", NotFound("guide", nil))
		assert.Equal(t, ErrNotFound, CodeOf(err))
		assert.True(t, IsCode(err, ErrNotFound))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		err := fmt.Errorf("connection refused")
		assert.Equal(t, ErrInternal, CodeOf(err))
		assert.False(t, IsCode(err, ErrNotFound))
	})
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("row not found")
	err := NotFound("beneficiary", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "beneficiary not found")
	assert.Contains(t, err.Error(), "row not found")
}

func TestDomainConstructors(t *testing.T) {
	assert.True(t, IsCode(InvalidQuantity("granted above requested"), ErrInvalidQuantity))
	assert.True(t, IsCode(DuplicateAuthorization("procedure"), ErrDuplicateAuthorization))
	assert.True(t, IsCode(TypeMismatch("opme", "procedure"), ErrTypeMismatch))
	assert.True(t, IsCode(InvalidTransition("guide", "requested", "executed"), ErrInvalidTransition))
	assert.True(t, IsCode(GuideAlreadyInvoiced("GUIA-1"), ErrGuideAlreadyInvoiced))
	assert.True(t, IsCode(GuideNotExecuted("GUIA-1", "requested"), ErrGuideNotExecuted))
	assert.True(t, IsCode(UnresolvedDenialsPresent("material MAT-1"), ErrUnresolvedDenialsPresent))
}
