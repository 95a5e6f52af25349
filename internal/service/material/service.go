package material

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/lifecycle"
	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/reconcile"
	"github.com/ativasaude/guia-api/internal/repository"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
	"github.com/ativasaude/guia-api/pkg/metrics"
)

// GuideRecomputer re-derives a guide's status and total after one of its
// materials changes. Satisfied by the guide service.
type GuideRecomputer interface {
	Recompute(ctx context.Context, guideID uuid.UUID) (*model.Guide, error)
}

// Service manages materials: attachment to procedures, quantity
// authorization, consumption reconciliation and administrative denial.
type Service struct {
	txm        repository.TxManager
	materials  repository.MaterialRepository
	procedures repository.ProcedureRepository
	guides     repository.GuideRepository
	recomputer GuideRecomputer
	metrics    *metrics.Metrics
}

func NewService(
	txm repository.TxManager,
	materials repository.MaterialRepository,
	procedures repository.ProcedureRepository,
	guides repository.GuideRepository,
	recomputer GuideRecomputer,
	m *metrics.Metrics,
) *Service {
	return &Service{
		txm:        txm,
		materials:  materials,
		procedures: procedures,
		guides:     guides,
		recomputer: recomputer,
		metrics:    m,
	}
}

func (s *Service) AddMaterial(ctx context.Context, procedureID uuid.UUID, req *model.AddMaterialRequest) (*model.Material, error) {
	totalCents := int64(req.Quantity) * req.UnitValueCents
	if totalCents > model.HighCostThresholdCents {
		if req.Justification == nil || len(strings.TrimSpace(*req.Justification)) < 20 {
			return nil, apperrors.BadRequest("high-cost materials require a written justification", nil)
		}
	}
	if req.Batch != nil && req.BatchExpiry == nil {
		return nil, apperrors.BadRequest("materials with a batch must carry a batch expiry", nil)
	}

	var mat *model.Material
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.procedures.Get(ctx, procedureID)
		if err != nil {
			return err
		}
		g, err := s.guides.Get(ctx, p.GuideID)
		if err != nil {
			return err
		}
		if g.Status != model.GuideStatusRequested && g.Status != model.GuideStatusAuthorized {
			return apperrors.BadRequest("materials cannot be added after the guide has executed", nil)
		}

		mat = &model.Material{
			ProcedureID:       p.ID,
			Code:              strings.ToUpper(strings.TrimSpace(req.Code)),
			Table:             req.Table,
			Description:       strings.TrimSpace(req.Description),
			QuantityRequested: req.Quantity,
			UnitValueCents:    req.UnitValueCents,
			Status:            model.MaterialStatusRequested,
			Justification:     req.Justification,
			Batch:             req.Batch,
			BatchExpiry:       req.BatchExpiry,
		}
		if err := s.materials.Create(ctx, mat); err != nil {
			return err
		}
		_, err = s.recomputer.Recompute(ctx, g.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mat, nil
}

func (s *Service) GetMaterial(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	return s.materials.Get(ctx, id)
}

func (s *Service) ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*model.Material, error) {
	return s.materials.ListByProcedure(ctx, procedureID)
}

// Authorize records the granted quantity on a requested material. The
// granted quantity may be below the requested one (partial authorization)
// but never above it, except under substitution where up to double is
// accepted.
func (s *Service) Authorize(ctx context.Context, materialID uuid.UUID, req *model.AuthorizeMaterialRequest) (*model.Material, error) {
	var mat *model.Material
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		mat, err = s.materials.Get(ctx, materialID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckMaterialTransition(mat.Status, model.MaterialStatusAuthorized); err != nil {
			s.metrics.TransitionsRejected.WithLabelValues("material").Inc()
			return err
		}

		outcome, err := reconcile.Authorize(mat.QuantityRequested, req.QuantityGranted, req.AllowSubstitution)
		if err != nil {
			return err
		}
		mat.QuantityAuthorized = &outcome.Quantity
		mat.Status = outcome.Status
		if err := s.materials.Update(ctx, mat); err != nil {
			return err
		}
		return s.recomputeOwner(ctx, mat)
	})
	if err != nil {
		return nil, err
	}
	return mat, nil
}

// Consume records the used quantity and reconciles it against the
// authorized quantity. Over-consumption denies the material automatically
// with a generated reason; the recorded used quantity is kept either way.
// The request carries the version the caller read, so two concurrent
// consumers cannot both win.
func (s *Service) Consume(ctx context.Context, materialID uuid.UUID, req *model.ConsumeMaterialRequest) (*model.Material, error) {
	var mat *model.Material
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		mat, err = s.materials.Get(ctx, materialID)
		if err != nil {
			return err
		}
		if mat.Version != req.Version {
			s.metrics.LockConflicts.WithLabelValues("material").Inc()
			return apperrors.ConcurrentModification("material")
		}
		if mat.Status != model.MaterialStatusAuthorized {
			s.metrics.TransitionsRejected.WithLabelValues("material").Inc()
			return apperrors.InvalidTransition("material", string(mat.Status), string(model.MaterialStatusUsed))
		}

		authorized := 0
		if mat.QuantityAuthorized != nil {
			authorized = *mat.QuantityAuthorized
		}
		outcome := reconcile.Consume(authorized, req.QuantityUsed)

		mat.QuantityUsed = &outcome.Quantity
		mat.Status = outcome.Status
		if outcome.DenialReason != "" {
			reason := outcome.DenialReason
			mat.DenialReason = &reason
			s.metrics.DenialsDetected.WithLabelValues("reconciliation").Inc()
		}
		if err := s.materials.Update(ctx, mat); err != nil {
			return err
		}
		return s.recomputeOwner(ctx, mat)
	})
	if err != nil {
		return nil, err
	}
	return mat, nil
}

// Deny applies an administrative denial, the audit override that marks a
// line rejected regardless of its reconciliation outcome. Requires a
// written reason and is terminal.
func (s *Service) Deny(ctx context.Context, materialID uuid.UUID, req *model.DenyMaterialRequest) (*model.Material, error) {
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < 10 {
		return nil, apperrors.BadRequest("denial reason must have at least 10 characters", nil)
	}

	var mat *model.Material
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		mat, err = s.materials.Get(ctx, materialID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckAdministrativeDenial(mat.Status); err != nil {
			s.metrics.TransitionsRejected.WithLabelValues("material").Inc()
			return err
		}

		mat.Status = model.MaterialStatusDenied
		mat.DenialReason = &reason
		s.metrics.DenialsDetected.WithLabelValues("administrative").Inc()
		if err := s.materials.Update(ctx, mat); err != nil {
			return err
		}
		return s.recomputeOwner(ctx, mat)
	})
	if err != nil {
		return nil, err
	}
	return mat, nil
}

func (s *Service) recomputeOwner(ctx context.Context, mat *model.Material) error {
	p, err := s.procedures.Get(ctx, mat.ProcedureID)
	if err != nil {
		return err
	}
	_, err = s.recomputer.Recompute(ctx, p.GuideID)
	return err
}
