package guide

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ativasaude/guia-api/internal/lifecycle"
	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository/memory"
	"github.com/ativasaude/guia-api/pkg/clock"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
	"github.com/ativasaude/guia-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("guia_test", "guide")

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store        *memory.Store
	service      *Service
	beneficiary  *model.Beneficiary
	professional *model.RequestingProfessional
	provider     *model.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	svc := NewService(
		store, store.Guides(), store.Procedures(), store.Materials(),
		store.Authorizations(), store.Beneficiaries(), store.Professionals(),
		store.Providers(), lifecycle.Policy{}, clock.Fixed{T: testNow}, testMetrics,
	)

	b := &model.Beneficiary{Identifier: "CARTEIRA-001"}
	require.NoError(t, store.Beneficiaries().Create(ctx, b))
	prof := &model.RequestingProfessional{Name: "Dra. Helena Souza", LicenseBoard: "CRM-SP", LicenseNumber: "123456"}
	require.NoError(t, store.Professionals().Create(ctx, prof))
	prov := &model.Provider{Name: "Hospital Central", TaxID: "12345678000199"}
	require.NoError(t, store.Providers().Create(ctx, prov))

	return &fixture{store: store, service: svc, beneficiary: b, professional: prof, provider: prov}
}

func (f *fixture) createGuide(t *testing.T) *model.Guide {
	t.Helper()
	g, err := f.service.CreateGuide(context.Background(), &model.CreateGuideRequest{
		GuideNumber:    "guia-0500",
		BeneficiaryID:  f.beneficiary.ID,
		ProfessionalID: f.professional.ID,
		CareType:       model.CareTypeElective,
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) addProcedure(t *testing.T, guideID uuid.UUID) *model.Procedure {
	t.Helper()
	p, err := f.service.AddProcedure(context.Background(), guideID, &model.AddProcedureRequest{
		Code:           "10101012",
		Table:          model.TableTUSS,
		Description:    "consulta em consultorio",
		Category:       model.CategoryConsultation,
		Quantity:       1,
		UnitValueCents: 10_000,
	})
	require.NoError(t, err)
	return p
}

// approveProcedure binds and approves an authorization directly through
// the store so the guide service can be exercised in isolation.
func (f *fixture) approveProcedure(t *testing.T, procedureID uuid.UUID) *model.Authorization {
	t.Helper()
	auth, err := model.NewProcedureAuthorization("AUT-500", procedureID, testNow, testNow.Add(30*24*time.Hour))
	require.NoError(t, err)
	auth.Status = model.AuthorizationStatusApproved
	auth.ExecutingProviderID = &f.provider.ID
	require.NoError(t, f.store.Authorizations().Create(context.Background(), auth))
	return auth
}

func TestCreateGuide(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a requested guide with a normalized number", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)
		assert.Equal(t, "GUIA-0500", g.GuideNumber)
		assert.Equal(t, model.GuideStatusRequested, g.Status)
		assert.Equal(t, testNow, g.RequestedAt)
	})

	t.Run("short guide number rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateGuide(ctx, &model.CreateGuideRequest{
			GuideNumber:    "G1",
			BeneficiaryID:  f.beneficiary.ID,
			ProfessionalID: f.professional.ID,
			CareType:       model.CareTypeElective,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})

	t.Run("urgency requires a clinical justification", func(t *testing.T) {
		f := newFixture(t)
		req := &model.CreateGuideRequest{
			GuideNumber:    "GUIA-0501",
			BeneficiaryID:  f.beneficiary.ID,
			ProfessionalID: f.professional.ID,
			CareType:       model.CareTypeUrgency,
		}

		_, err := f.service.CreateGuide(ctx, req)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

		req.ClinicalJustification = "dor toracica aguda com irradiacao"
		_, err = f.service.CreateGuide(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("unknown beneficiary rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateGuide(ctx, &model.CreateGuideRequest{
			GuideNumber:    "GUIA-0502",
			BeneficiaryID:  uuid.New(),
			ProfessionalID: f.professional.ID,
			CareType:       model.CareTypeElective,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
	})
}

func TestAddProcedure(t *testing.T) {
	ctx := context.Background()

	t.Run("adds and updates the guide total", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)
		f.addProcedure(t, g.ID)

		stored, err := f.store.Guides().Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10_000), stored.TotalValueCents)
	})

	t.Run("sigtap codes need a valid group prefix", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)

		_, err := f.service.AddProcedure(ctx, g.ID, &model.AddProcedureRequest{
			Code:           "99101012",
			Table:          model.TableSIGTAP,
			Description:    "procedimento de grupo invalido",
			Category:       model.CategoryExam,
			Quantity:       1,
			UnitValueCents: 5_000,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

		_, err = f.service.AddProcedure(ctx, g.ID, &model.AddProcedureRequest{
			Code:           "0301010012",
			Table:          model.TableSIGTAP,
			Description:    "consulta de atencao basica",
			Category:       model.CategoryConsultation,
			Quantity:       1,
			UnitValueCents: 5_000,
		})
		assert.NoError(t, err)
	})

	t.Run("frozen after execution", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)
		g.Status = model.GuideStatusExecuted
		require.NoError(t, f.store.Guides().Update(ctx, g))

		_, err := f.service.AddProcedure(ctx, g.ID, &model.AddProcedureRequest{
			Code:           "10101012",
			Table:          model.TableTUSS,
			Description:    "consulta em consultorio",
			Category:       model.CategoryConsultation,
			Quantity:       1,
			UnitValueCents: 10_000,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})
}

func TestAuthorizeGuide(t *testing.T) {
	ctx := context.Background()

	t.Run("blocked while any procedure lacks an approved authorization", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)
		f.addProcedure(t, g.ID)

		_, err := f.service.Authorize(ctx, g.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

		stored, err := f.store.Guides().Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, model.GuideStatusRequested, stored.Status)
	})

	t.Run("passes once every procedure is approved", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)
		p := f.addProcedure(t, g.ID)
		f.approveProcedure(t, p.ID)

		out, err := f.service.Authorize(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, model.GuideStatusAuthorized, out.Status)
	})

	t.Run("guide without procedures cannot authorize", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)

		_, err := f.service.Authorize(ctx, g.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	authorizedGuide := func(t *testing.T, f *fixture) (*model.Guide, *model.Procedure) {
		g := f.createGuide(t)
		p := f.addProcedure(t, g.ID)
		f.approveProcedure(t, p.ID)
		g, err := f.service.Authorize(ctx, g.ID)
		require.NoError(t, err)
		return g, p
	}

	t.Run("records execution and advances the guide", func(t *testing.T) {
		f := newFixture(t)
		g, p := authorizedGuide(t, f)

		out, err := f.service.Execute(ctx, g.ID, p.ID, &model.ExecuteProcedureRequest{
			ExecutingProviderID: f.provider.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, model.GuideStatusExecuted, out.Status)

		stored, err := f.store.Procedures().Get(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ExecutedAt)
		assert.Equal(t, testNow, *stored.ExecutedAt)
		require.NotNil(t, stored.ExecutingProviderID)
		assert.Equal(t, f.provider.ID, *stored.ExecutingProviderID)
	})

	t.Run("future execution timestamp rejected", func(t *testing.T) {
		f := newFixture(t)
		g, p := authorizedGuide(t, f)
		future := testNow.Add(time.Hour)

		_, err := f.service.Execute(ctx, g.ID, p.ID, &model.ExecuteProcedureRequest{
			ExecutingProviderID: f.provider.ID,
			ExecutedAt:          &future,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})

	t.Run("requested guide cannot execute", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuide(t)
		p := f.addProcedure(t, g.ID)

		_, err := f.service.Execute(ctx, g.ID, p.ID, &model.ExecuteProcedureRequest{
			ExecutingProviderID: f.provider.ID,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})

	t.Run("procedure must belong to the guide", func(t *testing.T) {
		f := newFixture(t)
		g, _ := authorizedGuide(t, f)
		other := f.createGuide(t)
		otherProc := f.addProcedure(t, other.ID)

		_, err := f.service.Execute(ctx, g.ID, otherProc.ID, &model.ExecuteProcedureRequest{
			ExecutingProviderID: f.provider.ID,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})
}
