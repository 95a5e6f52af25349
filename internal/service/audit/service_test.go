package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository/memory"
	"github.com/ativasaude/guia-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("guia_test", "audit")

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func qty(n int) *int { return &n }

func TestDetectDenial(t *testing.T) {
	t.Run("over-consumed without denied status", func(t *testing.T) {
		m := &model.Material{
			QuantityAuthorized: qty(1),
			QuantityUsed:       qty(2),
			Status:             model.MaterialStatusUsed,
		}
		assert.True(t, DetectDenial(m))

		// Pure over the snapshot: repeated calls agree.
		assert.True(t, DetectDenial(m))
	})

	t.Run("already denied is not re-flagged", func(t *testing.T) {
		m := &model.Material{
			QuantityAuthorized: qty(1),
			QuantityUsed:       qty(2),
			Status:             model.MaterialStatusDenied,
		}
		assert.False(t, DetectDenial(m))
	})

	t.Run("within authorization", func(t *testing.T) {
		m := &model.Material{
			QuantityAuthorized: qty(2),
			QuantityUsed:       qty(2),
			Status:             model.MaterialStatusUsed,
		}
		assert.False(t, DetectDenial(m))
	})

	t.Run("no consumption recorded", func(t *testing.T) {
		m := &model.Material{
			QuantityAuthorized: qty(2),
			Status:             model.MaterialStatusAuthorized,
		}
		assert.False(t, DetectDenial(m))
	})
}

type fixture struct {
	store   *memory.Store
	service *Service
	guide   *model.Guide
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store.Materials(), store.Authorizations(), testMetrics)

	g := &model.Guide{
		GuideNumber: "GUIA-0400",
		CareType:    model.CareTypeElective,
		RequestedAt: testNow,
		Status:      model.GuideStatusExecuted,
	}
	require.NoError(t, store.Guides().Create(context.Background(), g))
	return &fixture{store: store, service: svc, guide: g}
}

func (f *fixture) addMaterial(t *testing.T, m *model.Material) *model.Material {
	t.Helper()
	ctx := context.Background()
	p := &model.Procedure{
		GuideID:        f.guide.ID,
		Code:           "10101012",
		Table:          model.TableTUSS,
		Description:    "consulta em consultorio",
		Category:       model.CategoryConsultation,
		Quantity:       1,
		UnitValueCents: 10_000,
	}
	require.NoError(t, f.store.Procedures().Create(ctx, p))
	m.ProcedureID = p.ID
	require.NoError(t, f.store.Materials().Create(ctx, m))
	return m
}

func TestScanDenials(t *testing.T) {
	ctx := context.Background()

	t.Run("flags uncorrected and unexplained denials", func(t *testing.T) {
		f := newFixture(t)
		uncorrected := f.addMaterial(t, &model.Material{
			Code: "MAT-A", Table: model.TableSIMPRO, Description: "cateter venoso central",
			QuantityRequested: 2, QuantityAuthorized: qty(1), QuantityUsed: qty(2),
			UnitValueCents: 1_000, Status: model.MaterialStatusUsed,
		})
		unexplained := f.addMaterial(t, &model.Material{
			Code: "MAT-B", Table: model.TableSIMPRO, Description: "dreno de suc cirurgica",
			QuantityRequested: 1, QuantityAuthorized: qty(1), QuantityUsed: qty(1),
			UnitValueCents: 1_000, Status: model.MaterialStatusDenied,
		})
		f.addMaterial(t, &model.Material{
			Code: "MAT-C", Table: model.TableSIMPRO, Description: "compressa de gaze esteril",
			QuantityRequested: 1, QuantityAuthorized: qty(1), QuantityUsed: qty(1),
			UnitValueCents: 1_000, Status: model.MaterialStatusUsed,
		})

		findings, err := f.service.ScanDenials(ctx, Scope{GuideID: &f.guide.ID})
		require.NoError(t, err)
		require.Len(t, findings, 2)

		byID := map[uuid.UUID]FindingKind{}
		for _, finding := range findings {
			assert.Equal(t, "material", finding.EntityKind)
			byID[finding.EntityID] = finding.Kind
		}
		assert.Equal(t, FindingUncorrectedDenial, byID[uncorrected.ID])
		assert.Equal(t, FindingMissingDenialReason, byID[unexplained.ID])
	})

	t.Run("denial with a recorded reason is clean", func(t *testing.T) {
		f := newFixture(t)
		reason := "quantidade utilizada excede a autorizada"
		f.addMaterial(t, &model.Material{
			Code: "MAT-D", Table: model.TableSIMPRO, Description: "fio de sutura absorvivel",
			QuantityRequested: 2, QuantityAuthorized: qty(1), QuantityUsed: qty(2),
			UnitValueCents: 1_000, Status: model.MaterialStatusDenied, DenialReason: &reason,
		})

		findings, err := f.service.ScanDenials(ctx, Scope{GuideID: &f.guide.ID})
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("unscoped scan sees every guide", func(t *testing.T) {
		f := newFixture(t)
		f.addMaterial(t, &model.Material{
			Code: "MAT-E", Table: model.TableSIMPRO, Description: "luva cirurgica esteril",
			QuantityRequested: 2, QuantityAuthorized: qty(1), QuantityUsed: qty(2),
			UnitValueCents: 1_000, Status: model.MaterialStatusUsed,
		})
		f.addMaterial(t, &model.Material{
			Code: "MAT-F", Table: model.TableSIMPRO, Description: "agulha hipodermica",
			QuantityRequested: 1, QuantityAuthorized: qty(1), QuantityUsed: qty(1),
			UnitValueCents: 1_000, Status: model.MaterialStatusDenied,
		})

		findings, err := f.service.ScanDenials(ctx, Scope{})
		require.NoError(t, err)
		assert.Len(t, findings, 2)
	})

	t.Run("repeated scans produce identical ordered output", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 5; i++ {
			f.addMaterial(t, &model.Material{
				Code: "MAT-R", Table: model.TableSIMPRO, Description: "material para reproducao",
				QuantityRequested: 2, QuantityAuthorized: qty(1), QuantityUsed: qty(2),
				UnitValueCents: 1_000, Status: model.MaterialStatusUsed,
			})
		}

		first, err := f.service.ScanDenials(ctx, Scope{GuideID: &f.guide.ID})
		require.NoError(t, err)
		second, err := f.service.ScanDenials(ctx, Scope{GuideID: &f.guide.ID})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestScanOrphanAuthorizations(t *testing.T) {
	ctx := context.Background()

	t.Run("authorization without a target row is orphaned", func(t *testing.T) {
		f := newFixture(t)
		auth, err := model.NewProcedureAuthorization("AUT-900", uuid.New(), testNow, testNow.Add(24*time.Hour))
		require.NoError(t, err)
		auth.Status = model.AuthorizationStatusApproved
		require.NoError(t, f.store.Authorizations().Create(ctx, auth))

		findings, err := f.service.ScanOrphanAuthorizations(ctx, testNow, Scope{})
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, FindingOrphanAuthorization, findings[0].Kind)
		assert.Equal(t, auth.ID, findings[0].EntityID)
	})

	t.Run("approved authorization over a denied material is contradicted", func(t *testing.T) {
		f := newFixture(t)
		reason := "material sem cobertura contratual"
		m := f.addMaterial(t, &model.Material{
			Code: "MAT-G", Table: model.TableSIMPRO, Description: "protese de joelho",
			QuantityRequested: 1, QuantityAuthorized: qty(1), QuantityUsed: qty(1),
			UnitValueCents: 1_000, Status: model.MaterialStatusDenied, DenialReason: &reason,
		})
		auth, err := model.NewMaterialAuthorization("AUT-901", m.ID, testNow.Add(-time.Hour), testNow.Add(24*time.Hour))
		require.NoError(t, err)
		auth.Status = model.AuthorizationStatusApproved
		require.NoError(t, f.store.Authorizations().Create(ctx, auth))

		findings, err := f.service.ScanOrphanAuthorizations(ctx, testNow, Scope{GuideID: &f.guide.ID})
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, FindingContradictedAuthorization, findings[0].Kind)
	})

	t.Run("expired approval is not reported as of a later instant", func(t *testing.T) {
		f := newFixture(t)
		reason := "material sem cobertura contratual"
		m := f.addMaterial(t, &model.Material{
			Code: "MAT-H", Table: model.TableSIMPRO, Description: "placa de osteossintese",
			QuantityRequested: 1, QuantityAuthorized: qty(1), QuantityUsed: qty(1),
			UnitValueCents: 1_000, Status: model.MaterialStatusDenied, DenialReason: &reason,
		})
		auth, err := model.NewMaterialAuthorization("AUT-902", m.ID, testNow.Add(-48*time.Hour), testNow.Add(-24*time.Hour))
		require.NoError(t, err)
		auth.Status = model.AuthorizationStatusApproved
		require.NoError(t, f.store.Authorizations().Create(ctx, auth))

		findings, err := f.service.ScanOrphanAuthorizations(ctx, testNow, Scope{GuideID: &f.guide.ID})
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("clean data yields an empty report", func(t *testing.T) {
		f := newFixture(t)
		findings, err := f.service.ScanOrphanAuthorizations(ctx, testNow, Scope{})
		require.NoError(t, err)
		assert.Empty(t, findings)
	})
}
