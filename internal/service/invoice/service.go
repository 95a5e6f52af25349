package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ativasaude/guia-api/internal/lifecycle"
	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository"
	"github.com/ativasaude/guia-api/internal/service/audit"
	"github.com/ativasaude/guia-api/pkg/clock"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
	"github.com/ativasaude/guia-api/pkg/metrics"
)

// MaxPeriodDays caps the billing period span of one invoice.
const MaxPeriodDays = 90

// Observer is notified after an invoice transitions to submitted and the
// transaction has committed. Implementations must not block for long;
// durable delivery goes through the outbox, observers are for in-process
// hooks such as billing emails.
type Observer interface {
	OnInvoiceSubmitted(ctx context.Context, inv *model.Invoice)
}

// DenialScanner is the audit gate consulted at finalize time. Satisfied
// by the audit service.
type DenialScanner interface {
	ScanDenials(ctx context.Context, scope audit.Scope) ([]audit.Finding, error)
}

// Service aggregates executed guides into provider invoices and drives
// the invoice through submission.
type Service struct {
	txm       repository.TxManager
	invoices  repository.InvoiceRepository
	guides    repository.GuideRepository
	providers repository.ProviderRepository
	outbox    repository.OutboxRepository
	scanner   DenialScanner
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	observers []Observer
}

func NewService(
	txm repository.TxManager,
	invoices repository.InvoiceRepository,
	guides repository.GuideRepository,
	providers repository.ProviderRepository,
	outbox repository.OutboxRepository,
	scanner DenialScanner,
	clk clock.Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		txm:       txm,
		invoices:  invoices,
		guides:    guides,
		providers: providers,
		outbox:    outbox,
		scanner:   scanner,
		clock:     clk,
		metrics:   m,
		logger:    logger,
	}
}

// Register adds an observer for the submitted transition. Not safe to
// call concurrently with Finalize; wire observers at startup.
func (s *Service) Register(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Service) CreateInvoice(ctx context.Context, req *model.CreateInvoiceRequest) (*model.Invoice, error) {
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, apperrors.BadRequest("invoice period end must be after period start", nil)
	}
	if req.PeriodEnd.Sub(req.PeriodStart) > MaxPeriodDays*24*time.Hour {
		return nil, apperrors.BadRequest(fmt.Sprintf("invoice period cannot exceed %d days", MaxPeriodDays), nil)
	}
	issuedAt := s.clock.Now()
	// Billing windows are issued during or shortly after the period they
	// cover, never before it opens.
	if issuedAt.Before(req.PeriodStart) || issuedAt.After(req.PeriodEnd.Add(30*24*time.Hour)) {
		return nil, apperrors.BadRequest("invoice must be issued between the period start and 30 days after its end", nil)
	}
	if _, err := s.providers.Get(ctx, req.ProviderID); err != nil {
		return nil, fmt.Errorf("invalid provider reference: %w", err)
	}

	inv := &model.Invoice{
		Number:      strings.ToUpper(strings.TrimSpace(req.Number)),
		ProviderID:  req.ProviderID,
		IssuedAt:    issuedAt,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Status:      model.InvoiceStatusPending,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return s.invoices.Get(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error) {
	return s.invoices.List(ctx, filters)
}

// AttachGuide adds an executed guide to a pending invoice and advances it
// to invoiced. A guide already associated with a pending or submitted
// invoice cannot join another one.
func (s *Service) AttachGuide(ctx context.Context, invoiceID uuid.UUID, req *model.AttachGuideRequest) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != model.InvoiceStatusPending {
			return apperrors.InvalidTransition("invoice", string(inv.Status), string(inv.Status))
		}

		g, err := s.guides.Get(ctx, req.GuideID)
		if err != nil {
			return err
		}
		if g.Status != model.GuideStatusExecuted {
			return apperrors.GuideNotExecuted(g.GuideNumber, string(g.Status))
		}
		active, err := s.invoices.ActiveInvoiceForGuide(ctx, g.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperrors.GuideAlreadyInvoiced(g.GuideNumber)
		}
		if err := lifecycle.CheckGuideTransition(g.Status, model.GuideStatusInvoiced); err != nil {
			return err
		}

		link := &model.InvoiceGuide{InvoiceID: inv.ID, GuideID: g.ID}
		if err := s.invoices.AttachGuide(ctx, link); err != nil {
			return err
		}

		from := g.Status
		g.Status = model.GuideStatusInvoiced
		if err := s.guides.Update(ctx, g); err != nil {
			return err
		}
		s.metrics.GuideTransitions.WithLabelValues(string(from), string(g.Status)).Inc()

		return s.recomputeTotal(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Finalize transitions a pending invoice to submitted. Before the
// transition the audit engine scans every attached guide: a denied line
// without a recorded reason blocks submission. This is a completeness
// gate, not a rejection of the invoice — denied lines already contribute
// zero to the total, but each one must be explained.
func (s *Service) Finalize(ctx context.Context, invoiceID uuid.UUID) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != model.InvoiceStatusPending {
			return apperrors.InvalidTransition("invoice", string(inv.Status), string(model.InvoiceStatusSubmitted))
		}

		guideIDs, err := s.invoices.ListGuideIDs(ctx, inv.ID)
		if err != nil {
			return err
		}
		for _, guideID := range guideIDs {
			id := guideID
			findings, err := s.scanner.ScanDenials(ctx, audit.Scope{GuideID: &id})
			if err != nil {
				return err
			}
			for _, f := range findings {
				if f.Kind == audit.FindingMissingDenialReason {
					return apperrors.UnresolvedDenialsPresent(f.Detail)
				}
			}
		}

		if err := s.recomputeTotal(ctx, inv); err != nil {
			return err
		}

		inv.Status = model.InvoiceStatusSubmitted
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}

		payload, err := json.Marshal(model.InvoiceSubmittedPayload{
			InvoiceID:       inv.ID,
			Number:          inv.Number,
			ProviderID:      inv.ProviderID,
			TotalValueCents: inv.TotalValueCents,
			GuideCount:      len(guideIDs),
			SubmittedAt:     s.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal invoice event payload: %w", err)
		}
		return s.outbox.Create(ctx, &model.OutboxEvent{
			EventType: model.EventInvoiceSubmitted,
			Payload:   payload,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoicesFinalized.Inc()
	s.metrics.InvoiceTotalCents.Observe(float64(inv.TotalValueCents))
	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("number", inv.Number).
		Int64("total_value_cents", inv.TotalValueCents).
		Msg("invoice submitted")

	for _, o := range s.observers {
		o.OnInvoiceSubmitted(ctx, inv)
	}
	return inv, nil
}

// MarkPaid closes out a submitted invoice and every guide on it.
func (s *Service) MarkPaid(ctx context.Context, invoiceID uuid.UUID) (*model.Invoice, error) {
	return s.settle(ctx, invoiceID, model.InvoiceStatusPaid, true)
}

// Contest marks a submitted invoice contested by the payer. Guides stay
// invoiced until the dispute settles.
func (s *Service) Contest(ctx context.Context, invoiceID uuid.UUID) (*model.Invoice, error) {
	return s.settle(ctx, invoiceID, model.InvoiceStatusContested, false)
}

func (s *Service) settle(ctx context.Context, invoiceID uuid.UUID, to model.InvoiceStatus, closeGuides bool) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != model.InvoiceStatusSubmitted {
			return apperrors.InvalidTransition("invoice", string(inv.Status), string(to))
		}

		inv.Status = to
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}
		if !closeGuides {
			return nil
		}

		guideIDs, err := s.invoices.ListGuideIDs(ctx, inv.ID)
		if err != nil {
			return err
		}
		for _, guideID := range guideIDs {
			g, err := s.guides.Get(ctx, guideID)
			if err != nil {
				return err
			}
			if err := lifecycle.CheckGuideTransition(g.Status, model.GuideStatusClosed); err != nil {
				return err
			}
			from := g.Status
			g.Status = model.GuideStatusClosed
			if err := s.guides.Update(ctx, g); err != nil {
				return err
			}
			s.metrics.GuideTransitions.WithLabelValues(string(from), string(g.Status)).Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// recomputeTotal sums the billable value of every attached guide. Guide
// totals already exclude denied lines, so the invoice total inherits that
// exclusion.
func (s *Service) recomputeTotal(ctx context.Context, inv *model.Invoice) error {
	guideIDs, err := s.invoices.ListGuideIDs(ctx, inv.ID)
	if err != nil {
		return err
	}
	var total int64
	for _, guideID := range guideIDs {
		g, err := s.guides.Get(ctx, guideID)
		if err != nil {
			return err
		}
		total += g.TotalValueCents
	}
	inv.TotalValueCents = total
	return s.invoices.Update(ctx, inv)
}
