package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ativasaude/guia-api/internal/model"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCheckGuideTransition(t *testing.T) {
	chain := []model.GuideStatus{
		model.GuideStatusRequested,
		model.GuideStatusAuthorized,
		model.GuideStatusExecuted,
		model.GuideStatusInvoiced,
		model.GuideStatusClosed,
	}

	for i := 0; i < len(chain)-1; i++ {
		assert.NoError(t, CheckGuideTransition(chain[i], chain[i+1]))
	}

	t.Run("no skipping", func(t *testing.T) {
		err := CheckGuideTransition(model.GuideStatusRequested, model.GuideStatusExecuted)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})

	t.Run("no regression", func(t *testing.T) {
		err := CheckGuideTransition(model.GuideStatusExecuted, model.GuideStatusAuthorized)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})

	t.Run("closed is terminal", func(t *testing.T) {
		err := CheckGuideTransition(model.GuideStatusClosed, model.GuideStatusRequested)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})
}

func TestCheckMaterialTransition(t *testing.T) {
	assert.NoError(t, CheckMaterialTransition(model.MaterialStatusRequested, model.MaterialStatusAuthorized))
	assert.NoError(t, CheckMaterialTransition(model.MaterialStatusAuthorized, model.MaterialStatusUsed))
	assert.NoError(t, CheckMaterialTransition(model.MaterialStatusUsed, model.MaterialStatusDenied))

	t.Run("denial before consumption data exists", func(t *testing.T) {
		err := CheckMaterialTransition(model.MaterialStatusRequested, model.MaterialStatusDenied)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})

	t.Run("denied is terminal", func(t *testing.T) {
		err := CheckMaterialTransition(model.MaterialStatusDenied, model.MaterialStatusUsed)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})
}

func TestCheckAdministrativeDenial(t *testing.T) {
	assert.NoError(t, CheckAdministrativeDenial(model.MaterialStatusRequested))
	assert.NoError(t, CheckAdministrativeDenial(model.MaterialStatusAuthorized))
	assert.NoError(t, CheckAdministrativeDenial(model.MaterialStatusUsed))

	err := CheckAdministrativeDenial(model.MaterialStatusDenied)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func approvedAuth(targetID uuid.UUID) *model.Authorization {
	id := targetID
	return &model.Authorization{
		Base:        model.Base{ID: uuid.New()},
		ProcedureID: &id,
		ApprovedAt:  now.Add(-time.Hour),
		ValidUntil:  now.Add(24 * time.Hour),
		Status:      model.AuthorizationStatusApproved,
	}
}

func snapshotWithProcedures(procedures ...*model.Procedure) GuideSnapshot {
	return GuideSnapshot{
		Guide:          &model.Guide{Base: model.Base{ID: uuid.New()}, Status: model.GuideStatusRequested},
		Procedures:     procedures,
		ProcedureAuths: map[string]*model.Authorization{},
		MaterialAuths:  map[string]*model.Authorization{},
	}
}

func TestCheckGuideAuthorization(t *testing.T) {
	t.Run("procedure without authorization blocks the transition", func(t *testing.T) {
		p := &model.Procedure{Base: model.Base{ID: uuid.New()}}
		s := snapshotWithProcedures(p)

		err := CheckGuideAuthorization(s, Policy{}, now)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})

	t.Run("zero procedures blocks the transition", func(t *testing.T) {
		s := snapshotWithProcedures()
		err := CheckGuideAuthorization(s, Policy{}, now)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})

	t.Run("all procedures approved passes", func(t *testing.T) {
		p := &model.Procedure{Base: model.Base{ID: uuid.New()}}
		s := snapshotWithProcedures(p)
		s.ProcedureAuths[p.ID.String()] = approvedAuth(p.ID)

		assert.NoError(t, CheckGuideAuthorization(s, Policy{}, now))
	})

	t.Run("expired authorization blocks", func(t *testing.T) {
		p := &model.Procedure{Base: model.Base{ID: uuid.New()}}
		s := snapshotWithProcedures(p)
		auth := approvedAuth(p.ID)
		auth.ValidUntil = now.Add(-time.Minute)
		s.ProcedureAuths[p.ID.String()] = auth

		err := CheckGuideAuthorization(s, Policy{}, now)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})

	t.Run("strict policy demands material authorizations too", func(t *testing.T) {
		p := &model.Procedure{Base: model.Base{ID: uuid.New()}}
		m := &model.Material{Base: model.Base{ID: uuid.New()}, ProcedureID: p.ID}
		s := snapshotWithProcedures(p)
		s.Materials = []*model.Material{m}
		s.ProcedureAuths[p.ID.String()] = approvedAuth(p.ID)

		assert.NoError(t, CheckGuideAuthorization(s, Policy{}, now))

		err := CheckGuideAuthorization(s, Policy{RequireMaterialAuthorization: true}, now)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})
}

func TestDeriveGuideStatus(t *testing.T) {
	providerID := uuid.New()
	executedAt := now.Add(-time.Hour)

	t.Run("no procedures stays requested", func(t *testing.T) {
		s := snapshotWithProcedures()
		assert.Equal(t, model.GuideStatusRequested, DeriveGuideStatus(s, Policy{}, now))
	})

	t.Run("all authorized derives authorized", func(t *testing.T) {
		p := &model.Procedure{Base: model.Base{ID: uuid.New()}}
		s := snapshotWithProcedures(p)
		s.ProcedureAuths[p.ID.String()] = approvedAuth(p.ID)

		assert.Equal(t, model.GuideStatusAuthorized, DeriveGuideStatus(s, Policy{}, now))
	})

	t.Run("any executed procedure derives executed", func(t *testing.T) {
		p := &model.Procedure{
			Base:                model.Base{ID: uuid.New()},
			ExecutingProviderID: &providerID,
			ExecutedAt:          &executedAt,
		}
		s := snapshotWithProcedures(p)

		assert.Equal(t, model.GuideStatusExecuted, DeriveGuideStatus(s, Policy{}, now))
	})

	t.Run("all procedures denied derives denied", func(t *testing.T) {
		p := &model.Procedure{Base: model.Base{ID: uuid.New()}}
		s := snapshotWithProcedures(p)
		auth := approvedAuth(p.ID)
		auth.Status = model.AuthorizationStatusDenied
		s.ProcedureAuths[p.ID.String()] = auth

		assert.Equal(t, model.GuideStatusDenied, DeriveGuideStatus(s, Policy{}, now))
	})

	t.Run("invoiced and closed pass through untouched", func(t *testing.T) {
		for _, status := range []model.GuideStatus{model.GuideStatusInvoiced, model.GuideStatusClosed} {
			s := snapshotWithProcedures()
			s.Guide.Status = status
			assert.Equal(t, status, DeriveGuideStatus(s, Policy{}, now))
		}
	})
}

func TestBillableTotalCents(t *testing.T) {
	qty := func(n int) *int { return &n }

	p1 := &model.Procedure{Base: model.Base{ID: uuid.New()}, Quantity: 1, UnitValueCents: 10_000}
	p2 := &model.Procedure{Base: model.Base{ID: uuid.New()}, Quantity: 2, UnitValueCents: 5_000}

	m1 := &model.Material{
		Base: model.Base{ID: uuid.New()}, ProcedureID: p1.ID,
		QuantityRequested: 2, QuantityAuthorized: qty(2), QuantityUsed: qty(2),
		UnitValueCents: 1_000, Status: model.MaterialStatusUsed,
	}
	denied := &model.Material{
		Base: model.Base{ID: uuid.New()}, ProcedureID: p1.ID,
		QuantityRequested: 2, QuantityAuthorized: qty(1), QuantityUsed: qty(2),
		UnitValueCents: 1_000, Status: model.MaterialStatusDenied,
	}

	s := GuideSnapshot{
		Guide:          &model.Guide{Base: model.Base{ID: uuid.New()}, Status: model.GuideStatusExecuted},
		Procedures:     []*model.Procedure{p1, p2},
		Materials:      []*model.Material{m1, denied},
		ProcedureAuths: map[string]*model.Authorization{},
		MaterialAuths:  map[string]*model.Authorization{},
	}

	// 10000 + 10000 + 2*1000; the denied material contributes zero.
	assert.Equal(t, int64(22_000), BillableTotalCents(s))

	t.Run("denied procedure drops its materials too", func(t *testing.T) {
		auth := approvedAuth(p1.ID)
		auth.Status = model.AuthorizationStatusDenied
		s.ProcedureAuths[p1.ID.String()] = auth

		// Only p2 remains billable.
		assert.Equal(t, int64(10_000), BillableTotalCents(s))
	})
}
