package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationConstructors(t *testing.T) {
	approvedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	validUntil := approvedAt.Add(30 * 24 * time.Hour)

	t.Run("procedure authorization binds exactly one side", func(t *testing.T) {
		a, err := NewProcedureAuthorization("AUT-1", uuid.New(), approvedAt, validUntil)
		require.NoError(t, err)
		assert.NotNil(t, a.ProcedureID)
		assert.Nil(t, a.MaterialID)
		assert.Equal(t, TargetProcedure, a.TargetKind())
		assert.Equal(t, AuthorizationStatusPending, a.Status)
	})

	t.Run("material authorization binds exactly one side", func(t *testing.T) {
		a, err := NewMaterialAuthorization("AUT-2", uuid.New(), approvedAt, validUntil)
		require.NoError(t, err)
		assert.Nil(t, a.ProcedureID)
		assert.NotNil(t, a.MaterialID)
		assert.Equal(t, TargetMaterial, a.TargetKind())
	})

	t.Run("nil target rejected", func(t *testing.T) {
		_, err := NewProcedureAuthorization("AUT-3", uuid.Nil, approvedAt, validUntil)
		assert.Error(t, err)

		_, err = NewMaterialAuthorization("AUT-4", uuid.Nil, approvedAt, validUntil)
		assert.Error(t, err)
	})

	t.Run("validity must end after approval", func(t *testing.T) {
		_, err := NewProcedureAuthorization("AUT-5", uuid.New(), approvedAt, approvedAt)
		assert.Error(t, err)
	})

	t.Run("validity capped at one year", func(t *testing.T) {
		_, err := NewProcedureAuthorization("AUT-6", uuid.New(), approvedAt, approvedAt.Add(366*24*time.Hour))
		assert.Error(t, err)

		_, err = NewProcedureAuthorization("AUT-7", uuid.New(), approvedAt, approvedAt.Add(365*24*time.Hour))
		assert.NoError(t, err)
	})
}

func TestAuthorizationExpiry(t *testing.T) {
	approvedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewProcedureAuthorization("AUT-8", uuid.New(), approvedAt, approvedAt.Add(24*time.Hour))
	require.NoError(t, err)
	a.Status = AuthorizationStatusApproved

	assert.True(t, a.ActiveAt(approvedAt.Add(time.Hour)))
	assert.False(t, a.ActiveAt(approvedAt.Add(48*time.Hour)))
	assert.True(t, a.ExpiredAt(approvedAt.Add(48*time.Hour)))

	t.Run("pending is never active", func(t *testing.T) {
		a.Status = AuthorizationStatusPending
		assert.False(t, a.ActiveAt(approvedAt.Add(time.Hour)))
	})
}
