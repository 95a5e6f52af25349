package authorization

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository"
	"github.com/ativasaude/guia-api/pkg/clock"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

// GuideRecomputer re-derives a guide after one of its authorizations
// changes. Satisfied by the guide service.
type GuideRecomputer interface {
	Recompute(ctx context.Context, guideID uuid.UUID) (*model.Guide, error)
}

// Service binds authorizations to procedures and materials and manages
// their approval, denial and revocation. The exactly-one-target rule is
// enforced here and by the model constructors: there is no code path that
// produces an authorization bound to both sides or to neither.
type Service struct {
	txm        repository.TxManager
	auths      repository.AuthorizationRepository
	procedures repository.ProcedureRepository
	materials  repository.MaterialRepository
	providers  repository.ProviderRepository
	recomputer GuideRecomputer
	clock      clock.Clock
}

func NewService(
	txm repository.TxManager,
	auths repository.AuthorizationRepository,
	procedures repository.ProcedureRepository,
	materials repository.MaterialRepository,
	providers repository.ProviderRepository,
	recomputer GuideRecomputer,
	clk clock.Clock,
) *Service {
	return &Service{
		txm:        txm,
		auths:      auths,
		procedures: procedures,
		materials:  materials,
		providers:  providers,
		recomputer: recomputer,
		clock:      clk,
	}
}

// Bind creates a pending authorization for exactly one procedure or
// material. A target that already holds a live authorization is rejected;
// the authorization type must match the target side.
func (s *Service) Bind(ctx context.Context, req *model.BindAuthorizationRequest) (*model.Authorization, error) {
	kind, targetID, err := resolveTarget(req)
	if err != nil {
		return nil, err
	}
	if err := checkTypeMatch(req.Type, kind); err != nil {
		return nil, err
	}

	var auth *model.Authorization
	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		guideID, err := s.resolveGuide(ctx, kind, targetID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		existing, err := s.auths.GetForTarget(ctx, kind, targetID)
		if err != nil {
			return err
		}
		if existing != nil && isLive(existing, now) {
			return apperrors.DuplicateAuthorization(string(kind))
		}

		switch kind {
		case model.TargetProcedure:
			auth, err = model.NewProcedureAuthorization(req.Number, targetID, now, req.ValidUntil)
		case model.TargetMaterial:
			auth, err = model.NewMaterialAuthorization(req.Number, targetID, now, req.ValidUntil)
		}
		if err != nil {
			return apperrors.BadRequest(err.Error(), err)
		}
		auth.ExecutingProviderID = req.ExecutingProviderID
		auth.Notes = req.Notes

		if err := s.auths.Create(ctx, auth); err != nil {
			return err
		}
		_, err = s.recomputer.Recompute(ctx, guideID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Authorization, error) {
	return s.auths.Get(ctx, id)
}

// Approve marks a pending authorization approved. Procedure
// authorizations must name the executing provider before approval, either
// at bind time or here.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, executingProviderID *uuid.UUID) (*model.Authorization, error) {
	var auth *model.Authorization
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		auth, err = s.auths.Get(ctx, id)
		if err != nil {
			return err
		}
		if auth.Status != model.AuthorizationStatusPending {
			return apperrors.InvalidTransition("authorization", string(auth.Status), string(model.AuthorizationStatusApproved))
		}
		if auth.ExpiredAt(s.clock.Now()) {
			return apperrors.InvalidTransition("authorization", string(auth.Status), string(model.AuthorizationStatusApproved))
		}

		if executingProviderID != nil {
			if _, err := s.providers.Get(ctx, *executingProviderID); err != nil {
				return err
			}
			auth.ExecutingProviderID = executingProviderID
		}
		if auth.TargetKind() == model.TargetProcedure && auth.ExecutingProviderID == nil {
			return apperrors.BadRequest("procedure authorizations require an executing provider", nil)
		}

		auth.Status = model.AuthorizationStatusApproved
		if err := s.auths.Update(ctx, auth); err != nil {
			return err
		}
		return s.recomputeTargetGuide(ctx, auth)
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// Deny marks a pending authorization denied with a written reason.
func (s *Service) Deny(ctx context.Context, id uuid.UUID, req *model.RevokeAuthorizationRequest) (*model.Authorization, error) {
	return s.close(ctx, id, model.AuthorizationStatusDenied, req.Reason,
		func(status model.AuthorizationStatus) bool { return status == model.AuthorizationStatusPending })
}

// Revoke cancels a pending or approved authorization. Revoking an
// approved authorization puts its target back into the unauthorized pool
// on the next guide derivation.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, req *model.RevokeAuthorizationRequest) (*model.Authorization, error) {
	return s.close(ctx, id, model.AuthorizationStatusCancelled, req.Reason,
		func(status model.AuthorizationStatus) bool {
			return status == model.AuthorizationStatusPending || status == model.AuthorizationStatusApproved
		})
}

// ExpireStale sweeps approved authorizations past their validity window
// and stamps the expired status. Derivation never trusts the stored
// status for expiry, so this is bookkeeping for reporting, run by the
// background worker.
func (s *Service) ExpireStale(ctx context.Context, guideID uuid.UUID) (int, error) {
	now := s.clock.Now()
	expired := 0
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		auths, err := s.auths.ListByGuide(ctx, guideID)
		if err != nil {
			return err
		}
		for _, a := range auths {
			if a.Status != model.AuthorizationStatusApproved || !a.ExpiredAt(now) {
				continue
			}
			a.Status = model.AuthorizationStatusExpired
			if err := s.auths.Update(ctx, a); err != nil {
				return err
			}
			expired++
		}
		if expired == 0 {
			return nil
		}
		_, err = s.recomputer.Recompute(ctx, guideID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

func (s *Service) close(ctx context.Context, id uuid.UUID, to model.AuthorizationStatus, reason string, allowed func(model.AuthorizationStatus) bool) (*model.Authorization, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < 10 {
		return nil, apperrors.BadRequest("a reason of at least 10 characters is required", nil)
	}

	var auth *model.Authorization
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		auth, err = s.auths.Get(ctx, id)
		if err != nil {
			return err
		}
		if !allowed(auth.Status) {
			return apperrors.InvalidTransition("authorization", string(auth.Status), string(to))
		}

		auth.Status = to
		auth.DenialReason = &reason
		if err := s.auths.Update(ctx, auth); err != nil {
			return err
		}
		return s.recomputeTargetGuide(ctx, auth)
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

func (s *Service) resolveGuide(ctx context.Context, kind model.TargetKind, targetID uuid.UUID) (uuid.UUID, error) {
	switch kind {
	case model.TargetProcedure:
		p, err := s.procedures.Get(ctx, targetID)
		if err != nil {
			return uuid.Nil, err
		}
		return p.GuideID, nil
	default:
		m, err := s.materials.Get(ctx, targetID)
		if err != nil {
			return uuid.Nil, err
		}
		p, err := s.procedures.Get(ctx, m.ProcedureID)
		if err != nil {
			return uuid.Nil, err
		}
		return p.GuideID, nil
	}
}

func (s *Service) recomputeTargetGuide(ctx context.Context, auth *model.Authorization) error {
	guideID, err := s.resolveGuide(ctx, auth.TargetKind(), auth.TargetID())
	if err != nil {
		return err
	}
	_, err = s.recomputer.Recompute(ctx, guideID)
	return err
}

func resolveTarget(req *model.BindAuthorizationRequest) (model.TargetKind, uuid.UUID, error) {
	switch {
	case req.ProcedureID != nil && req.MaterialID != nil:
		return "", uuid.Nil, apperrors.BadRequest("an authorization binds to a procedure or a material, not both", nil)
	case req.ProcedureID != nil:
		return model.TargetProcedure, *req.ProcedureID, nil
	case req.MaterialID != nil:
		return model.TargetMaterial, *req.MaterialID, nil
	default:
		return "", uuid.Nil, apperrors.BadRequest("an authorization requires a procedure or material target", nil)
	}
}

func checkTypeMatch(authType model.AuthorizationType, kind model.TargetKind) error {
	switch {
	case authType == model.AuthorizationTypeProcedure && kind != model.TargetProcedure:
		return apperrors.TypeMismatch(string(authType), string(kind))
	case authType == model.AuthorizationTypeOPME && kind != model.TargetMaterial:
		return apperrors.TypeMismatch(string(authType), string(kind))
	}
	return nil
}

// isLive reports whether an existing authorization still blocks a new
// binding. Denied, cancelled and expired records do not, and expiry is
// evaluated against asOf rather than the stored status, which lags until
// the sweep runs.
func isLive(a *model.Authorization, asOf time.Time) bool {
	if a.Status != model.AuthorizationStatusPending && a.Status != model.AuthorizationStatusApproved {
		return false
	}
	return !a.ExpiredAt(asOf)
}
