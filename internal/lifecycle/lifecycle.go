// Package lifecycle enforces the ordered status transitions of guides and
// materials and derives guide status from its constituent parts. All
// functions are pure; services call them inside their transaction
// boundaries and persist the results.
package lifecycle

import (
	"time"

	"github.com/ativasaude/guia-api/internal/model"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

// Policy configures how strict guide authorization is.
type Policy struct {
	// RequireMaterialAuthorization, when set, demands that every material
	// also hold an active authorization before the guide can move to
	// authorized. When unset only procedure-level authorizations gate the
	// transition and materials may authorize independently later.
	RequireMaterialAuthorization bool
}

// guideOrder lists the forward chain. Denied sits outside the chain and is
// only produced by derivation.
var guideNext = map[model.GuideStatus]model.GuideStatus{
	model.GuideStatusRequested:  model.GuideStatusAuthorized,
	model.GuideStatusAuthorized: model.GuideStatusExecuted,
	model.GuideStatusExecuted:   model.GuideStatusInvoiced,
	model.GuideStatusInvoiced:   model.GuideStatusClosed,
}

// CheckGuideTransition rejects any guide transition that is not the next
// step in the chain. There is no skip-state shortcut and no regression.
func CheckGuideTransition(from, to model.GuideStatus) error {
	if next, ok := guideNext[from]; ok && next == to {
		return nil
	}
	return apperrors.InvalidTransition("guide", string(from), string(to))
}

var materialNext = map[model.MaterialStatus]model.MaterialStatus{
	model.MaterialStatusRequested:  model.MaterialStatusAuthorized,
	model.MaterialStatusAuthorized: model.MaterialStatusUsed,
	model.MaterialStatusUsed:       model.MaterialStatusDenied,
}

// CheckMaterialTransition rejects out-of-order material transitions.
// Automatic denial is reachable from used only: a material cannot be
// denied before consumption data exists.
func CheckMaterialTransition(from, to model.MaterialStatus) error {
	if next, ok := materialNext[from]; ok && next == to {
		return nil
	}
	return apperrors.InvalidTransition("material", string(from), string(to))
}

// CheckAdministrativeDenial gates the audit-override denial, which is
// distinct from the automatic over-consumption denial and may be applied
// at any point before the material is already denied.
func CheckAdministrativeDenial(from model.MaterialStatus) error {
	if from == model.MaterialStatusDenied {
		return apperrors.InvalidTransition("material", string(from), string(model.MaterialStatusDenied))
	}
	return nil
}

// GuideSnapshot carries the children a guide's status derives from.
// Authorizations are keyed by their bound procedure id.
type GuideSnapshot struct {
	Guide      *model.Guide
	Procedures []*model.Procedure
	Materials  []*model.Material
	// ProcedureAuths maps procedure id to its most recent authorization.
	ProcedureAuths map[string]*model.Authorization
	// MaterialAuths maps material id to its most recent authorization.
	MaterialAuths map[string]*model.Authorization
}

// DeriveGuideStatus recomputes the guide status from its children at the
// given instant. Statuses at or past invoiced are owned by the invoice
// aggregator and never regress, so they pass through untouched.
func DeriveGuideStatus(s GuideSnapshot, policy Policy, asOf time.Time) model.GuideStatus {
	current := s.Guide.Status
	if current == model.GuideStatusInvoiced || current == model.GuideStatusClosed {
		return current
	}

	if len(s.Procedures) == 0 {
		return model.GuideStatusRequested
	}

	if allProceduresDenied(s) {
		return model.GuideStatusDenied
	}

	for _, p := range s.Procedures {
		if p.Executed() {
			return model.GuideStatusExecuted
		}
	}

	if allAuthorized(s, policy, asOf) {
		return model.GuideStatusAuthorized
	}

	return model.GuideStatusRequested
}

// CheckGuideAuthorization verifies the requested -> authorized
// precondition: every procedure holds an approved, non-expired
// authorization, and with a strict policy every material does too.
func CheckGuideAuthorization(s GuideSnapshot, policy Policy, asOf time.Time) error {
	if len(s.Procedures) == 0 {
		return apperrors.InvalidTransition("guide", string(s.Guide.Status), string(model.GuideStatusAuthorized))
	}
	if !allAuthorized(s, policy, asOf) {
		return apperrors.InvalidTransition("guide", string(s.Guide.Status), string(model.GuideStatusAuthorized))
	}
	return nil
}

// CheckGuideExecution verifies the authorized -> executed precondition:
// at least one procedure carries an execution timestamp and an executing
// provider.
func CheckGuideExecution(s GuideSnapshot) error {
	for _, p := range s.Procedures {
		if p.Executed() {
			return nil
		}
	}
	return apperrors.InvalidTransition("guide", string(s.Guide.Status), string(model.GuideStatusExecuted))
}

func allAuthorized(s GuideSnapshot, policy Policy, asOf time.Time) bool {
	for _, p := range s.Procedures {
		auth, ok := s.ProcedureAuths[p.ID.String()]
		if !ok || !auth.ActiveAt(asOf) {
			return false
		}
	}
	if policy.RequireMaterialAuthorization {
		for _, m := range s.Materials {
			auth, ok := s.MaterialAuths[m.ID.String()]
			if !ok || !auth.ActiveAt(asOf) {
				return false
			}
		}
	}
	return true
}

func allProceduresDenied(s GuideSnapshot) bool {
	for _, p := range s.Procedures {
		auth, ok := s.ProcedureAuths[p.ID.String()]
		if !ok || auth.Status != model.AuthorizationStatusDenied {
			return false
		}
	}
	return true
}
