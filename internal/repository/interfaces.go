package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/model"
)

// TxManager runs fn inside a single database transaction. Repositories
// called with the context passed to fn participate in that transaction,
// so a multi-entity mutation is all-or-nothing.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	BeneficiaryRepository interface {
		Create(ctx context.Context, b *model.Beneficiary) error
		Get(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error)
		GetByIdentifier(ctx context.Context, identifier string) (*model.Beneficiary, error)
		Retire(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	ProfessionalRepository interface {
		Create(ctx context.Context, p *model.RequestingProfessional) error
		Get(ctx context.Context, id uuid.UUID) (*model.RequestingProfessional, error)
	}

	ProviderRepository interface {
		Create(ctx context.Context, p *model.Provider) error
		Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	}

	GuideRepository interface {
		Create(ctx context.Context, g *model.Guide) error
		Get(ctx context.Context, id uuid.UUID) (*model.Guide, error)
		GetByNumber(ctx context.Context, number string) (*model.Guide, error)
		// Update is conditioned on the version carried by g and bumps it;
		// a stale version yields a ConcurrentModification error.
		Update(ctx context.Context, g *model.Guide) error
		List(ctx context.Context, filters *model.GuideFilters) ([]*model.Guide, error)
	}

	ProcedureRepository interface {
		Create(ctx context.Context, p *model.Procedure) error
		Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error)
		Update(ctx context.Context, p *model.Procedure) error
		ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*model.Procedure, error)
	}

	MaterialRepository interface {
		Create(ctx context.Context, m *model.Material) error
		Get(ctx context.Context, id uuid.UUID) (*model.Material, error)
		Update(ctx context.Context, m *model.Material) error
		ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*model.Material, error)
		ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*model.Material, error)
		// ListOverConsumed returns materials whose used quantity exceeds
		// the authorized quantity, optionally scoped to one guide.
		ListOverConsumed(ctx context.Context, guideID *uuid.UUID) ([]*model.Material, error)
		// ListDeniedWithoutReason returns denied materials missing a reason.
		ListDeniedWithoutReason(ctx context.Context) ([]*model.Material, error)
	}

	AuthorizationRepository interface {
		Create(ctx context.Context, a *model.Authorization) error
		Get(ctx context.Context, id uuid.UUID) (*model.Authorization, error)
		Update(ctx context.Context, a *model.Authorization) error
		// GetForTarget returns the most recent authorization bound to the
		// given procedure or material, or nil when none exists.
		GetForTarget(ctx context.Context, kind model.TargetKind, targetID uuid.UUID) (*model.Authorization, error)
		ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*model.Authorization, error)
		// ListOrphaned returns authorizations whose bound target no longer
		// resolves to a live procedure or material row.
		ListOrphaned(ctx context.Context) ([]*model.Authorization, error)
		// ListContradicted returns approved authorizations whose target is
		// denied, optionally scoped to one guide.
		ListContradicted(ctx context.Context, guideID *uuid.UUID) ([]*model.Authorization, error)
	}

	InvoiceRepository interface {
		Create(ctx context.Context, inv *model.Invoice) error
		Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
		GetByNumber(ctx context.Context, number string) (*model.Invoice, error)
		Update(ctx context.Context, inv *model.Invoice) error
		List(ctx context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error)
		AttachGuide(ctx context.Context, link *model.InvoiceGuide) error
		ListGuideIDs(ctx context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error)
		// ActiveInvoiceForGuide returns the pending or submitted invoice the
		// guide belongs to, or nil when it has none.
		ActiveInvoiceForGuide(ctx context.Context, guideID uuid.UUID) (*model.Invoice, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
