// Package reconcile computes material quantity reconciliation outcomes.
// Everything here is a pure function over the (requested, authorized,
// used) triple: no I/O, no hidden state, defined for every non-negative
// input pair.
package reconcile

import (
	"fmt"

	"github.com/ativasaude/guia-api/internal/model"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

// DenialReasonOverConsumption is the generated reason attached to a
// material whose used quantity exceeds the authorized quantity.
const DenialReasonOverConsumption = "used quantity exceeds authorized quantity"

// Outcome is the value produced by a reconciliation step.
type Outcome struct {
	Status       model.MaterialStatus
	Quantity     int
	DenialReason string
}

// Authorize validates the quantity granted against the quantity requested
// and yields the authorized outcome. The tolerance policy is exact match:
// granting more than requested is rejected unless allowSubstitution is
// set, in which case up to twice the requested quantity is accepted
// (device substitution during surgery).
func Authorize(requested, granted int, allowSubstitution bool) (Outcome, error) {
	if requested < 1 {
		return Outcome{}, apperrors.InvalidQuantity("requested quantity must be at least 1")
	}
	if granted < 0 {
		return Outcome{}, apperrors.InvalidQuantity("granted quantity cannot be negative")
	}
	limit := requested
	if allowSubstitution {
		limit = requested * 2
	}
	if granted > limit {
		return Outcome{}, apperrors.InvalidQuantity(
			fmt.Sprintf("granted quantity %d exceeds requested quantity %d", granted, requested))
	}
	return Outcome{Status: model.MaterialStatusAuthorized, Quantity: granted}, nil
}

// Consume reconciles the used quantity against the authorized quantity.
// It is total over every pair of non-negative integers and deterministic:
// used <= authorized yields the used status, used > authorized yields the
// denied status with the generated over-consumption reason. This is the
// core glosa detection rule.
func Consume(authorized, used int) Outcome {
	if used > authorized {
		return Outcome{
			Status:       model.MaterialStatusDenied,
			Quantity:     used,
			DenialReason: DenialReasonOverConsumption,
		}
	}
	return Outcome{Status: model.MaterialStatusUsed, Quantity: used}
}

// OverConsumed reports whether the used quantity exceeds the authorized
// quantity on a material snapshot, treating unset quantities as zero.
func OverConsumed(m *model.Material) bool {
	if m.QuantityUsed == nil {
		return false
	}
	authorized := 0
	if m.QuantityAuthorized != nil {
		authorized = *m.QuantityAuthorized
	}
	return *m.QuantityUsed > authorized
}
