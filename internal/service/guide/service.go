package guide

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/lifecycle"
	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository"
	"github.com/ativasaude/guia-api/pkg/clock"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
	"github.com/ativasaude/guia-api/pkg/metrics"
)

// Service owns the guide lifecycle: creation, procedure attachment,
// authorization and execution transitions, and the derived-status
// recomputation every other service calls after touching a guide's
// children.
type Service struct {
	txm           repository.TxManager
	guides        repository.GuideRepository
	procedures    repository.ProcedureRepository
	materials     repository.MaterialRepository
	auths         repository.AuthorizationRepository
	beneficiaries repository.BeneficiaryRepository
	professionals repository.ProfessionalRepository
	providers     repository.ProviderRepository
	policy        lifecycle.Policy
	clock         clock.Clock
	metrics       *metrics.Metrics
}

func NewService(
	txm repository.TxManager,
	guides repository.GuideRepository,
	procedures repository.ProcedureRepository,
	materials repository.MaterialRepository,
	auths repository.AuthorizationRepository,
	beneficiaries repository.BeneficiaryRepository,
	professionals repository.ProfessionalRepository,
	providers repository.ProviderRepository,
	policy lifecycle.Policy,
	clk clock.Clock,
	m *metrics.Metrics,
) *Service {
	return &Service{
		txm:           txm,
		guides:        guides,
		procedures:    procedures,
		materials:     materials,
		auths:         auths,
		beneficiaries: beneficiaries,
		professionals: professionals,
		providers:     providers,
		policy:        policy,
		clock:         clk,
		metrics:       m,
	}
}

func (s *Service) CreateGuide(ctx context.Context, req *model.CreateGuideRequest) (*model.Guide, error) {
	if err := s.validateGuideRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.beneficiaries.Get(ctx, req.BeneficiaryID); err != nil {
		return nil, fmt.Errorf("invalid beneficiary reference: %w", err)
	}
	if _, err := s.professionals.Get(ctx, req.ProfessionalID); err != nil {
		return nil, fmt.Errorf("invalid professional reference: %w", err)
	}

	g := &model.Guide{
		GuideNumber:           strings.ToUpper(strings.TrimSpace(req.GuideNumber)),
		BeneficiaryID:         req.BeneficiaryID,
		ProfessionalID:        req.ProfessionalID,
		CareType:              req.CareType,
		ClinicalJustification: strings.TrimSpace(req.ClinicalJustification),
		RequestedAt:           s.clock.Now(),
		Status:                model.GuideStatusRequested,
	}

	if err := s.guides.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create guide: %w", err)
	}
	return g, nil
}

func (s *Service) GetGuide(ctx context.Context, id uuid.UUID) (*model.Guide, error) {
	return s.guides.Get(ctx, id)
}

func (s *Service) ListGuides(ctx context.Context, filters *model.GuideFilters) ([]*model.Guide, error) {
	return s.guides.List(ctx, filters)
}

func (s *Service) AddProcedure(ctx context.Context, guideID uuid.UUID, req *model.AddProcedureRequest) (*model.Procedure, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Table == model.TableSIGTAP && !hasSIGTAPGroupPrefix(code) {
		return nil, apperrors.BadRequest("SIGTAP codes must start with a valid group (01-04)", nil)
	}

	var p *model.Procedure
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		g, err := s.guides.Get(ctx, guideID)
		if err != nil {
			return err
		}
		// Procedures are only added during the request phase; quantity and
		// unit value freeze once the guide executes.
		if g.Status != model.GuideStatusRequested && g.Status != model.GuideStatusAuthorized {
			return apperrors.BadRequest("procedures cannot be added after the guide has executed", nil)
		}

		p = &model.Procedure{
			GuideID:        g.ID,
			Code:           code,
			Table:          req.Table,
			Description:    strings.TrimSpace(req.Description),
			Category:       req.Category,
			Quantity:       req.Quantity,
			UnitValueCents: req.UnitValueCents,
		}
		if err := s.procedures.Create(ctx, p); err != nil {
			return err
		}
		_, err = s.recomputeLocked(ctx, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Authorize moves the guide from requested to authorized. Every procedure
// must hold an approved, non-expired authorization; depending on policy
// materials may authorize independently later.
func (s *Service) Authorize(ctx context.Context, guideID uuid.UUID) (*model.Guide, error) {
	return s.transition(ctx, guideID, model.GuideStatusAuthorized, func(snap lifecycle.GuideSnapshot) error {
		return lifecycle.CheckGuideAuthorization(snap, s.policy, s.clock.Now())
	})
}

// Execute records execution data on one procedure and moves the guide
// from authorized to executed.
func (s *Service) Execute(ctx context.Context, guideID, procedureID uuid.UUID, req *model.ExecuteProcedureRequest) (*model.Guide, error) {
	executedAt := s.clock.Now()
	if req.ExecutedAt != nil {
		executedAt = *req.ExecutedAt
	}
	if executedAt.After(s.clock.Now()) {
		return nil, apperrors.BadRequest("execution timestamp cannot be in the future", nil)
	}
	if _, err := s.providers.Get(ctx, req.ExecutingProviderID); err != nil {
		return nil, fmt.Errorf("invalid executing provider reference: %w", err)
	}

	var g *model.Guide
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		g, err = s.guides.Get(ctx, guideID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckGuideTransition(g.Status, model.GuideStatusExecuted); err != nil {
			s.metrics.TransitionsRejected.WithLabelValues("guide").Inc()
			return err
		}

		p, err := s.procedures.Get(ctx, procedureID)
		if err != nil {
			return err
		}
		if p.GuideID != g.ID {
			return apperrors.BadRequest("procedure does not belong to this guide", nil)
		}

		p.ExecutingProviderID = &req.ExecutingProviderID
		p.ExecutedAt = &executedAt
		if err := s.procedures.Update(ctx, p); err != nil {
			return err
		}

		snap, err := s.loadSnapshot(ctx, g)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckGuideExecution(snap); err != nil {
			s.metrics.TransitionsRejected.WithLabelValues("guide").Inc()
			return err
		}
		return s.applyStatus(ctx, g, snap)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Recompute re-derives the guide status and billable total from its
// current children and persists both. Other services call this at the
// end of any mutation that touches a guide's parts.
func (s *Service) Recompute(ctx context.Context, guideID uuid.UUID) (*model.Guide, error) {
	var g *model.Guide
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		g, err = s.guides.Get(ctx, guideID)
		if err != nil {
			return err
		}
		_, err = s.recomputeLocked(ctx, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// transition runs a guarded one-step guide transition inside a transaction.
func (s *Service) transition(ctx context.Context, guideID uuid.UUID, to model.GuideStatus, check func(lifecycle.GuideSnapshot) error) (*model.Guide, error) {
	var g *model.Guide
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		g, err = s.guides.Get(ctx, guideID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckGuideTransition(g.Status, to); err != nil {
			s.metrics.TransitionsRejected.WithLabelValues("guide").Inc()
			return err
		}

		snap, err := s.loadSnapshot(ctx, g)
		if err != nil {
			return err
		}
		if err := check(snap); err != nil {
			s.metrics.TransitionsRejected.WithLabelValues("guide").Inc()
			return err
		}
		return s.applyStatus(ctx, g, snap)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) recomputeLocked(ctx context.Context, g *model.Guide) (model.GuideStatus, error) {
	snap, err := s.loadSnapshot(ctx, g)
	if err != nil {
		return "", err
	}
	if err := s.applyStatus(ctx, g, snap); err != nil {
		return "", err
	}
	return g.Status, nil
}

func (s *Service) applyStatus(ctx context.Context, g *model.Guide, snap lifecycle.GuideSnapshot) error {
	from := g.Status
	g.Status = lifecycle.DeriveGuideStatus(snap, s.policy, s.clock.Now())
	g.TotalValueCents = lifecycle.BillableTotalCents(snap)
	if err := s.guides.Update(ctx, g); err != nil {
		return err
	}
	if from != g.Status {
		s.metrics.GuideTransitions.WithLabelValues(string(from), string(g.Status)).Inc()
	}
	return nil
}

func (s *Service) loadSnapshot(ctx context.Context, g *model.Guide) (lifecycle.GuideSnapshot, error) {
	procedures, err := s.procedures.ListByGuide(ctx, g.ID)
	if err != nil {
		return lifecycle.GuideSnapshot{}, err
	}
	materials, err := s.materials.ListByGuide(ctx, g.ID)
	if err != nil {
		return lifecycle.GuideSnapshot{}, err
	}
	auths, err := s.auths.ListByGuide(ctx, g.ID)
	if err != nil {
		return lifecycle.GuideSnapshot{}, err
	}

	snap := lifecycle.GuideSnapshot{
		Guide:          g,
		Procedures:     procedures,
		Materials:      materials,
		ProcedureAuths: make(map[string]*model.Authorization),
		MaterialAuths:  make(map[string]*model.Authorization),
	}
	for _, a := range auths {
		switch a.TargetKind() {
		case model.TargetProcedure:
			snap.ProcedureAuths[a.TargetID().String()] = a
		case model.TargetMaterial:
			snap.MaterialAuths[a.TargetID().String()] = a
		}
	}
	return snap, nil
}

func (s *Service) validateGuideRequest(req *model.CreateGuideRequest) error {
	number := strings.TrimSpace(req.GuideNumber)
	if len(number) < 5 {
		return apperrors.BadRequest("guide number must have at least 5 characters", nil)
	}
	if req.CareType == model.CareTypeUrgency || req.CareType == model.CareTypeEmergency {
		if len(strings.TrimSpace(req.ClinicalJustification)) < 10 {
			return apperrors.BadRequest("urgency and emergency guides require a detailed clinical justification", nil)
		}
	}
	return nil
}

func hasSIGTAPGroupPrefix(code string) bool {
	for _, prefix := range []string{"01", "02", "03", "04"} {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}
