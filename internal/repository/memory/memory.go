// Package memory provides in-memory repository implementations used by
// service tests. Version checks behave like the postgres layer: an update
// carrying a stale version fails with a concurrent modification error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

// Store holds every entity map behind one mutex. A single lock is plenty
// for tests and makes cross-repository reads consistent.
type Store struct {
	mu sync.Mutex

	beneficiaries map[uuid.UUID]*model.Beneficiary
	professionals map[uuid.UUID]*model.RequestingProfessional
	providers     map[uuid.UUID]*model.Provider
	guides        map[uuid.UUID]*model.Guide
	procedures    map[uuid.UUID]*model.Procedure
	materials     map[uuid.UUID]*model.Material
	auths         map[uuid.UUID]*model.Authorization
	invoices      map[uuid.UUID]*model.Invoice
	invoiceGuides []*model.InvoiceGuide
	outbox        []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		beneficiaries: make(map[uuid.UUID]*model.Beneficiary),
		professionals: make(map[uuid.UUID]*model.RequestingProfessional),
		providers:     make(map[uuid.UUID]*model.Provider),
		guides:        make(map[uuid.UUID]*model.Guide),
		procedures:    make(map[uuid.UUID]*model.Procedure),
		materials:     make(map[uuid.UUID]*model.Material),
		auths:         make(map[uuid.UUID]*model.Authorization),
		invoices:      make(map[uuid.UUID]*model.Invoice),
	}
}

// WithTx satisfies repository.TxManager. There is no transaction to
// manage in memory; fn runs directly.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func stamp(b *model.Base) {
	b.ID = uuid.New()
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
}

// Beneficiaries returns the beneficiary repository view of the store.
func (s *Store) Beneficiaries() repository.BeneficiaryRepository { return (*beneficiaryRepo)(s) }

type beneficiaryRepo Store

func (r *beneficiaryRepo) Create(_ context.Context, b *model.Beneficiary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&b.Base)
	cp := *b
	r.beneficiaries[b.ID] = &cp
	return nil
}

func (r *beneficiaryRepo) Get(_ context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.beneficiaries[id]
	if !ok {
		return nil, apperrors.NotFound("beneficiary", nil)
	}
	cp := *b
	return &cp, nil
}

func (r *beneficiaryRepo) GetByIdentifier(_ context.Context, identifier string) (*model.Beneficiary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.beneficiaries {
		if b.Identifier == identifier {
			cp := *b
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("beneficiary", nil)
}

func (r *beneficiaryRepo) Retire(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.beneficiaries[id]
	if !ok {
		return apperrors.NotFound("beneficiary", nil)
	}
	b.RetiredAt = &at
	return nil
}

// Professionals returns the professional repository view of the store.
func (s *Store) Professionals() repository.ProfessionalRepository { return (*professionalRepo)(s) }

type professionalRepo Store

func (r *professionalRepo) Create(_ context.Context, p *model.RequestingProfessional) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&p.Base)
	cp := *p
	r.professionals[p.ID] = &cp
	return nil
}

func (r *professionalRepo) Get(_ context.Context, id uuid.UUID) (*model.RequestingProfessional, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.professionals[id]
	if !ok {
		return nil, apperrors.NotFound("professional", nil)
	}
	cp := *p
	return &cp, nil
}

// Providers returns the provider repository view of the store.
func (s *Store) Providers() repository.ProviderRepository { return (*providerRepo)(s) }

type providerRepo Store

func (r *providerRepo) Create(_ context.Context, p *model.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&p.Base)
	cp := *p
	r.providers[p.ID] = &cp
	return nil
}

func (r *providerRepo) Get(_ context.Context, id uuid.UUID) (*model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, apperrors.NotFound("provider", nil)
	}
	cp := *p
	return &cp, nil
}

// Guides returns the guide repository view of the store.
func (s *Store) Guides() repository.GuideRepository { return (*guideRepo)(s) }

type guideRepo Store

func (r *guideRepo) Create(_ context.Context, g *model.Guide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&g.Base)
	cp := *g
	r.guides[g.ID] = &cp
	return nil
}

func (r *guideRepo) Get(_ context.Context, id uuid.UUID) (*model.Guide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[id]
	if !ok {
		return nil, apperrors.NotFound("guide", nil)
	}
	cp := *g
	return &cp, nil
}

func (r *guideRepo) GetByNumber(_ context.Context, number string) (*model.Guide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.guides {
		if g.GuideNumber == number {
			cp := *g
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("guide", nil)
}

func (r *guideRepo) Update(_ context.Context, g *model.Guide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.guides[g.ID]
	if !ok || stored.Version != g.Version {
		return apperrors.ConcurrentModification("guide")
	}
	g.Version++
	g.UpdatedAt = time.Now()
	cp := *g
	r.guides[g.ID] = &cp
	return nil
}

func (r *guideRepo) List(_ context.Context, filters *model.GuideFilters) ([]*model.Guide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Guide
	for _, g := range r.guides {
		if filters.Status != "" && g.Status != filters.Status {
			continue
		}
		if filters.BeneficiaryID != uuid.Nil && g.BeneficiaryID != filters.BeneficiaryID {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Procedures returns the procedure repository view of the store.
func (s *Store) Procedures() repository.ProcedureRepository { return (*procedureRepo)(s) }

type procedureRepo Store

func (r *procedureRepo) Create(_ context.Context, p *model.Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&p.Base)
	cp := *p
	r.procedures[p.ID] = &cp
	return nil
}

func (r *procedureRepo) Get(_ context.Context, id uuid.UUID) (*model.Procedure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procedures[id]
	if !ok {
		return nil, apperrors.NotFound("procedure", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *procedureRepo) Update(_ context.Context, p *model.Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.procedures[p.ID]
	if !ok || stored.Version != p.Version {
		return apperrors.ConcurrentModification("procedure")
	}
	p.Version++
	cp := *p
	r.procedures[p.ID] = &cp
	return nil
}

func (r *procedureRepo) ListByGuide(_ context.Context, guideID uuid.UUID) ([]*model.Procedure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Procedure
	for _, p := range r.procedures {
		if p.GuideID == guideID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Materials returns the material repository view of the store.
func (s *Store) Materials() repository.MaterialRepository { return (*materialRepo)(s) }

type materialRepo Store

func (r *materialRepo) Create(_ context.Context, m *model.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&m.Base)
	cp := *m
	r.materials[m.ID] = &cp
	return nil
}

func (r *materialRepo) Get(_ context.Context, id uuid.UUID) (*model.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return nil, apperrors.NotFound("material", nil)
	}
	cp := *m
	return &cp, nil
}

func (r *materialRepo) Update(_ context.Context, m *model.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.materials[m.ID]
	if !ok || stored.Version != m.Version {
		return apperrors.ConcurrentModification("material")
	}
	m.Version++
	cp := *m
	r.materials[m.ID] = &cp
	return nil
}

func (r *materialRepo) ListByProcedure(_ context.Context, procedureID uuid.UUID) ([]*model.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Material
	for _, m := range r.materials {
		if m.ProcedureID == procedureID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *materialRepo) ListByGuide(_ context.Context, guideID uuid.UUID) ([]*model.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Material
	for _, m := range r.materials {
		p, ok := r.procedures[m.ProcedureID]
		if ok && p.GuideID == guideID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *materialRepo) ListOverConsumed(_ context.Context, guideID *uuid.UUID) ([]*model.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Material
	for _, m := range r.materials {
		if m.QuantityUsed == nil {
			continue
		}
		authorized := 0
		if m.QuantityAuthorized != nil {
			authorized = *m.QuantityAuthorized
		}
		if *m.QuantityUsed <= authorized {
			continue
		}
		if guideID != nil {
			p, ok := r.procedures[m.ProcedureID]
			if !ok || p.GuideID != *guideID {
				continue
			}
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *materialRepo) ListDeniedWithoutReason(_ context.Context) ([]*model.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Material
	for _, m := range r.materials {
		if m.Status == model.MaterialStatusDenied && (m.DenialReason == nil || *m.DenialReason == "") {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Authorizations returns the authorization repository view of the store.
func (s *Store) Authorizations() repository.AuthorizationRepository { return (*authRepo)(s) }

type authRepo Store

func (r *authRepo) Create(_ context.Context, a *model.Authorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&a.Base)
	cp := *a
	r.auths[a.ID] = &cp
	return nil
}

func (r *authRepo) Get(_ context.Context, id uuid.UUID) (*model.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auths[id]
	if !ok {
		return nil, apperrors.NotFound("authorization", nil)
	}
	cp := *a
	return &cp, nil
}

func (r *authRepo) Update(_ context.Context, a *model.Authorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.auths[a.ID]
	if !ok || stored.Version != a.Version {
		return apperrors.ConcurrentModification("authorization")
	}
	a.Version++
	cp := *a
	r.auths[a.ID] = &cp
	return nil
}

func (r *authRepo) GetForTarget(_ context.Context, kind model.TargetKind, targetID uuid.UUID) (*model.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Authorization
	for _, a := range r.auths {
		if a.TargetKind() != kind || a.TargetID() != targetID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *authRepo) ListByGuide(_ context.Context, guideID uuid.UUID) ([]*model.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Authorization
	for _, a := range r.auths {
		if r.authBelongsToGuide(a, guideID) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *authRepo) authBelongsToGuide(a *model.Authorization, guideID uuid.UUID) bool {
	switch a.TargetKind() {
	case model.TargetProcedure:
		p, ok := r.procedures[a.TargetID()]
		return ok && p.GuideID == guideID
	default:
		m, ok := r.materials[a.TargetID()]
		if !ok {
			return false
		}
		p, ok := r.procedures[m.ProcedureID]
		return ok && p.GuideID == guideID
	}
}

func (r *authRepo) ListOrphaned(_ context.Context) ([]*model.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Authorization
	for _, a := range r.auths {
		orphaned := false
		switch a.TargetKind() {
		case model.TargetProcedure:
			_, ok := r.procedures[a.TargetID()]
			orphaned = !ok
		case model.TargetMaterial:
			_, ok := r.materials[a.TargetID()]
			orphaned = !ok
		}
		if orphaned {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *authRepo) ListContradicted(_ context.Context, guideID *uuid.UUID) ([]*model.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Authorization
	for _, a := range r.auths {
		if a.Status != model.AuthorizationStatusApproved || a.TargetKind() != model.TargetMaterial {
			continue
		}
		m, ok := r.materials[a.TargetID()]
		if !ok || m.Status != model.MaterialStatusDenied {
			continue
		}
		if guideID != nil {
			p, ok := r.procedures[m.ProcedureID]
			if !ok || p.GuideID != *guideID {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// Invoices returns the invoice repository view of the store.
func (s *Store) Invoices() repository.InvoiceRepository { return (*invoiceRepo)(s) }

type invoiceRepo Store

func (r *invoiceRepo) Create(_ context.Context, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&inv.Base)
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *invoiceRepo) Get(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, apperrors.NotFound("invoice", nil)
	}
	cp := *inv
	return &cp, nil
}

func (r *invoiceRepo) GetByNumber(_ context.Context, number string) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.Number == number {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("invoice", nil)
}

func (r *invoiceRepo) Update(_ context.Context, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok || stored.Version != inv.Version {
		return apperrors.ConcurrentModification("invoice")
	}
	inv.Version++
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *invoiceRepo) List(_ context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Invoice
	for _, inv := range r.invoices {
		if filters.Status != "" && inv.Status != filters.Status {
			continue
		}
		if filters.ProviderID != uuid.Nil && inv.ProviderID != filters.ProviderID {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func (r *invoiceRepo) AttachGuide(_ context.Context, link *model.InvoiceGuide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link.ID = uuid.New()
	link.AddedAt = time.Now()
	cp := *link
	r.invoiceGuides = append(r.invoiceGuides, &cp)
	return nil
}

func (r *invoiceRepo) ListGuideIDs(_ context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for _, link := range r.invoiceGuides {
		if link.InvoiceID == invoiceID {
			out = append(out, link.GuideID)
		}
	}
	return out, nil
}

func (r *invoiceRepo) ActiveInvoiceForGuide(_ context.Context, guideID uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.invoiceGuides {
		if link.GuideID != guideID {
			continue
		}
		inv, ok := r.invoices[link.InvoiceID]
		if ok && inv.Status.Active() {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

// Outbox returns the outbox repository view of the store.
func (s *Store) Outbox() repository.OutboxRepository { return (*outboxRepo)(s) }

type outboxRepo Store

func (r *outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	cp := *event
	r.outbox = append(r.outbox, &cp)
	return nil
}

func (r *outboxRepo) GetPendingWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.outbox {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.setStatus(id, model.OutboxStatusProcessed, nil)
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.setStatus(id, model.OutboxStatusFailed, &errMsg)
}

func (r *outboxRepo) setStatus(id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.outbox {
		if e.ID != id {
			continue
		}
		e.Status = status
		e.ErrorMessage = errMsg
		now := time.Now()
		e.UpdatedAt = now
		if status == model.OutboxStatusProcessed {
			e.ProcessedAt = &now
		} else {
			e.RetryCount++
		}
		return nil
	}
	return apperrors.NotFound("outbox event", nil)
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.OutboxEvent
	var deleted int64
	for _, e := range r.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.outbox = kept
	return deleted, nil
}

// Events returns a snapshot of the outbox contents for assertions.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		cp := *e
		out = append(out, &cp)
	}
	return out
}
