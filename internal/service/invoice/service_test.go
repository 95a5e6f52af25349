package invoice

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository/memory"
	"github.com/ativasaude/guia-api/internal/service/audit"
	"github.com/ativasaude/guia-api/pkg/clock"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
	"github.com/ativasaude/guia-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("guia_test", "invoice")

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type capturedObserver struct {
	submitted []*model.Invoice
}

func (o *capturedObserver) OnInvoiceSubmitted(_ context.Context, inv *model.Invoice) {
	o.submitted = append(o.submitted, inv)
}

type fixture struct {
	store    *memory.Store
	service  *Service
	observer *capturedObserver
	provider *model.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()

	auditSvc := audit.NewService(store.Materials(), store.Authorizations(), testMetrics)
	svc := NewService(
		store, store.Invoices(), store.Guides(), store.Providers(), store.Outbox(),
		auditSvc, clock.Fixed{T: testNow}, testMetrics, zerolog.Nop(),
	)
	observer := &capturedObserver{}
	svc.Register(observer)

	prov := &model.Provider{Name: "Hospital Central", TaxID: "12345678000199"}
	require.NoError(t, store.Providers().Create(context.Background(), prov))

	return &fixture{store: store, service: svc, observer: observer, provider: prov}
}

// executedGuide seeds a guide that already went through execution, carrying
// the given billable total.
func (f *fixture) executedGuide(t *testing.T, number string, totalCents int64) *model.Guide {
	t.Helper()
	g := &model.Guide{
		GuideNumber:     number,
		CareType:        model.CareTypeElective,
		RequestedAt:     testNow,
		Status:          model.GuideStatusExecuted,
		TotalValueCents: totalCents,
	}
	require.NoError(t, f.store.Guides().Create(context.Background(), g))
	return g
}

func (f *fixture) pendingInvoice(t *testing.T, number string) *model.Invoice {
	t.Helper()
	inv, err := f.service.CreateInvoice(context.Background(), &model.CreateInvoiceRequest{
		Number:      number,
		ProviderID:  f.provider.ID,
		PeriodStart: testNow.Add(-30 * 24 * time.Hour),
		PeriodEnd:   testNow,
	})
	require.NoError(t, err)
	return inv
}

// deniedMaterial seeds a denied material under the guide, optionally
// without a recorded reason.
func (f *fixture) deniedMaterial(t *testing.T, guideID uuid.UUID, reason *string) *model.Material {
	t.Helper()
	ctx := context.Background()
	p := &model.Procedure{
		GuideID:        guideID,
		Code:           "10101012",
		Table:          model.TableTUSS,
		Description:    "consulta em consultorio",
		Category:       model.CategoryConsultation,
		Quantity:       1,
		UnitValueCents: 10_000,
	}
	require.NoError(t, f.store.Procedures().Create(ctx, p))

	used := 2
	authorized := 1
	m := &model.Material{
		ProcedureID:        p.ID,
		Code:               "MAT-001",
		Table:              model.TableSIMPRO,
		Description:        "luva cirurgica esteril",
		QuantityRequested:  2,
		QuantityAuthorized: &authorized,
		QuantityUsed:       &used,
		UnitValueCents:     1_000,
		Status:             model.MaterialStatusDenied,
		DenialReason:       reason,
	}
	require.NoError(t, f.store.Materials().Create(ctx, m))
	return m
}

func TestCreateInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending with issue date from the clock", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "fat-2025-001")
		assert.Equal(t, model.InvoiceStatusPending, inv.Status)
		assert.Equal(t, "FAT-2025-001", inv.Number)
		assert.Equal(t, testNow, inv.IssuedAt)
		assert.Zero(t, inv.TotalValueCents)
	})

	t.Run("period longer than ninety days rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateInvoice(ctx, &model.CreateInvoiceRequest{
			Number:      "FAT-2025-002",
			ProviderID:  f.provider.ID,
			PeriodStart: testNow.Add(-91 * 24 * time.Hour),
			PeriodEnd:   testNow,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})

	t.Run("inverted period rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateInvoice(ctx, &model.CreateInvoiceRequest{
			Number:      "FAT-2025-003",
			ProviderID:  f.provider.ID,
			PeriodStart: testNow,
			PeriodEnd:   testNow.Add(-24 * time.Hour),
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})

	t.Run("issue date must fall inside the billing window", func(t *testing.T) {
		f := newFixture(t)
		// The period closed more than thirty days before the clock's now.
		_, err := f.service.CreateInvoice(ctx, &model.CreateInvoiceRequest{
			Number:      "FAT-2025-005",
			ProviderID:  f.provider.ID,
			PeriodStart: testNow.Add(-80 * 24 * time.Hour),
			PeriodEnd:   testNow.Add(-31 * 24 * time.Hour),
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

		// A period that has not opened yet cannot be billed either.
		_, err = f.service.CreateInvoice(ctx, &model.CreateInvoiceRequest{
			Number:      "FAT-2025-006",
			ProviderID:  f.provider.ID,
			PeriodStart: testNow.Add(24 * time.Hour),
			PeriodEnd:   testNow.Add(10 * 24 * time.Hour),
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateInvoice(ctx, &model.CreateInvoiceRequest{
			Number:      "FAT-2025-004",
			ProviderID:  uuid.New(),
			PeriodStart: testNow.Add(-24 * time.Hour),
			PeriodEnd:   testNow,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
	})
}

func TestAttachGuide(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches an executed guide and accumulates the total", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-010")
		g1 := f.executedGuide(t, "GUIA-0100", 10_000)
		g2 := f.executedGuide(t, "GUIA-0101", 5_000)

		inv, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g1.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(10_000), inv.TotalValueCents)

		inv, err = f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g2.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(15_000), inv.TotalValueCents)

		stored, err := f.store.Guides().Get(ctx, g1.ID)
		require.NoError(t, err)
		assert.Equal(t, model.GuideStatusInvoiced, stored.Status)
	})

	t.Run("guide must be executed", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-011")
		g := f.executedGuide(t, "GUIA-0102", 10_000)
		g.Status = model.GuideStatusAuthorized
		require.NoError(t, f.store.Guides().Update(ctx, g))

		_, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g.ID})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrGuideNotExecuted))
	})

	t.Run("guide on an active invoice cannot join another", func(t *testing.T) {
		f := newFixture(t)
		first := f.pendingInvoice(t, "FAT-2025-012")
		second := f.pendingInvoice(t, "FAT-2025-013")
		g := f.executedGuide(t, "GUIA-0103", 10_000)

		_, err := f.service.AttachGuide(ctx, first.ID, &model.AttachGuideRequest{GuideID: g.ID})
		require.NoError(t, err)

		// Put the guide back to executed to isolate the exclusivity check.
		stored, err := f.store.Guides().Get(ctx, g.ID)
		require.NoError(t, err)
		stored.Status = model.GuideStatusExecuted
		require.NoError(t, f.store.Guides().Update(ctx, stored))

		_, err = f.service.AttachGuide(ctx, second.ID, &model.AttachGuideRequest{GuideID: g.ID})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrGuideAlreadyInvoiced))
	})

	t.Run("only pending invoices accept guides", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-014")
		g := f.executedGuide(t, "GUIA-0104", 10_000)
		_, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g.ID})
		require.NoError(t, err)
		_, err = f.service.Finalize(ctx, inv.ID)
		require.NoError(t, err)

		other := f.executedGuide(t, "GUIA-0105", 5_000)
		_, err = f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: other.ID})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()

	t.Run("submits, writes the outbox event and notifies observers", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-020")
		g := f.executedGuide(t, "GUIA-0200", 12_000)
		_, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g.ID})
		require.NoError(t, err)

		out, err := f.service.Finalize(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusSubmitted, out.Status)
		assert.Equal(t, int64(12_000), out.TotalValueCents)

		events := f.store.Events()
		require.Len(t, events, 1)
		assert.Equal(t, model.EventInvoiceSubmitted, events[0].EventType)
		assert.Equal(t, model.OutboxStatusPending, events[0].Status)

		var payload model.InvoiceSubmittedPayload
		require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
		assert.Equal(t, out.ID, payload.InvoiceID)
		assert.Equal(t, int64(12_000), payload.TotalValueCents)
		assert.Equal(t, 1, payload.GuideCount)

		require.Len(t, f.observer.submitted, 1)
		assert.Equal(t, out.ID, f.observer.submitted[0].ID)
	})

	t.Run("denied line without a reason blocks submission", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-021")
		g := f.executedGuide(t, "GUIA-0201", 10_000)
		f.deniedMaterial(t, g.ID, nil)
		_, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g.ID})
		require.NoError(t, err)

		_, err = f.service.Finalize(ctx, inv.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrUnresolvedDenialsPresent))

		// The invoice did not move and nothing reached the outbox.
		stored, err := f.store.Invoices().Get(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusPending, stored.Status)
		assert.Empty(t, f.store.Events())
		assert.Empty(t, f.observer.submitted)
	})

	t.Run("denied line with a reason does not block", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-022")
		g := f.executedGuide(t, "GUIA-0202", 10_000)
		reason := "quantidade utilizada excede a autorizada"
		f.deniedMaterial(t, g.ID, &reason)
		_, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g.ID})
		require.NoError(t, err)

		out, err := f.service.Finalize(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusSubmitted, out.Status)
		// The guide total already excludes the denied line.
		assert.Equal(t, int64(10_000), out.TotalValueCents)
	})

	t.Run("only pending invoices finalize", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-023")
		g := f.executedGuide(t, "GUIA-0203", 10_000)
		_, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g.ID})
		require.NoError(t, err)
		_, err = f.service.Finalize(ctx, inv.ID)
		require.NoError(t, err)

		_, err = f.service.Finalize(ctx, inv.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	submitted := func(t *testing.T, f *fixture) (*model.Invoice, *model.Guide) {
		inv := f.pendingInvoice(t, "FAT-2025-030")
		g := f.executedGuide(t, "GUIA-0300", 10_000)
		_, err := f.service.AttachGuide(ctx, inv.ID, &model.AttachGuideRequest{GuideID: g.ID})
		require.NoError(t, err)
		inv, err = f.service.Finalize(ctx, inv.ID)
		require.NoError(t, err)
		return inv, g
	}

	t.Run("payment closes the invoice and its guides", func(t *testing.T) {
		f := newFixture(t)
		inv, g := submitted(t, f)

		out, err := f.service.MarkPaid(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusPaid, out.Status)

		stored, err := f.store.Guides().Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, model.GuideStatusClosed, stored.Status)
	})

	t.Run("contesting keeps the guides invoiced", func(t *testing.T) {
		f := newFixture(t)
		inv, g := submitted(t, f)

		out, err := f.service.Contest(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusContested, out.Status)

		stored, err := f.store.Guides().Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, model.GuideStatusInvoiced, stored.Status)
	})

	t.Run("pending invoices cannot settle", func(t *testing.T) {
		f := newFixture(t)
		inv := f.pendingInvoice(t, "FAT-2025-031")

		_, err := f.service.MarkPaid(ctx, inv.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	})
}
