package reference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository/memory"
	"github.com/ativasaude/guia-api/pkg/clock"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService() (*Service, *memory.Store) {
	store := memory.NewStore()
	svc := NewService(store.Beneficiaries(), store.Professionals(), store.Providers(), clock.Fixed{T: testNow})
	return svc, store
}

func TestCreateBeneficiary(t *testing.T) {
	ctx := context.Background()

	t.Run("creates with a trimmed identifier", func(t *testing.T) {
		svc, _ := newService()
		b, err := svc.CreateBeneficiary(ctx, &model.CreateBeneficiaryRequest{Identifier: "  CARTEIRA-001  "})
		require.NoError(t, err)
		assert.Equal(t, "CARTEIRA-001", b.Identifier)
		assert.Nil(t, b.RetiredAt)
	})

	t.Run("duplicate identifier rejected", func(t *testing.T) {
		svc, _ := newService()
		_, err := svc.CreateBeneficiary(ctx, &model.CreateBeneficiaryRequest{Identifier: "CARTEIRA-002"})
		require.NoError(t, err)

		_, err = svc.CreateBeneficiary(ctx, &model.CreateBeneficiaryRequest{Identifier: "CARTEIRA-002"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})

	t.Run("future date of birth rejected", func(t *testing.T) {
		svc, _ := newService()
		future := testNow.Add(24 * time.Hour)
		_, err := svc.CreateBeneficiary(ctx, &model.CreateBeneficiaryRequest{
			Identifier:  "CARTEIRA-003",
			DateOfBirth: &future,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})
}

func TestRetireBeneficiary(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	b, err := svc.CreateBeneficiary(ctx, &model.CreateBeneficiaryRequest{Identifier: "CARTEIRA-010"})
	require.NoError(t, err)

	require.NoError(t, svc.RetireBeneficiary(ctx, b.ID))

	stored, err := store.Beneficiaries().Get(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RetiredAt)
	assert.Equal(t, testNow, *stored.RetiredAt)
}

func TestCreateProfessional(t *testing.T) {
	svc, _ := newService()
	p, err := svc.CreateProfessional(context.Background(), &model.CreateProfessionalRequest{
		Name:          " Dra. Helena Souza ",
		LicenseBoard:  "crm-sp",
		LicenseNumber: "123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dra. Helena Souza", p.Name)
	assert.Equal(t, "CRM-SP", p.LicenseBoard)
}

func TestCreateProvider(t *testing.T) {
	svc, _ := newService()
	p, err := svc.CreateProvider(context.Background(), &model.CreateProviderRequest{
		Name:         "Hospital Central",
		TaxID:        "12345678000199",
		BillingEmail: "faturamento@hospitalcentral.com.br",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hospital Central", p.Name)
	assert.Equal(t, "faturamento@hospitalcentral.com.br", p.BillingEmail)
}
