package model

import (
	"time"

	"github.com/google/uuid"
)

type MaterialStatus string

const (
	MaterialStatusRequested  MaterialStatus = "requested"
	MaterialStatusAuthorized MaterialStatus = "authorized"
	MaterialStatusUsed       MaterialStatus = "used"
	MaterialStatusDenied     MaterialStatus = "denied"
)

// Material is a consumable or device tied to a procedure. The three
// quantity fields track the reconciliation lifecycle: requested at
// creation, authorized once the payer approves, used after execution.
type Material struct {
	Base
	ProcedureID        uuid.UUID      `db:"procedure_id" json:"procedure_id"`
	Code               string         `db:"code" json:"code"`
	Table              CodingTable    `db:"coding_table" json:"coding_table"`
	Description        string         `db:"description" json:"description"`
	QuantityRequested  int            `db:"quantity_requested" json:"quantity_requested"`
	QuantityAuthorized *int           `db:"quantity_authorized" json:"quantity_authorized,omitempty"`
	QuantityUsed       *int           `db:"quantity_used" json:"quantity_used,omitempty"`
	UnitValueCents     int64          `db:"unit_value_cents" json:"unit_value_cents"`
	Status             MaterialStatus `db:"status" json:"status"`
	DenialReason       *string        `db:"denial_reason" json:"denial_reason,omitempty"`
	Justification      *string        `db:"justification" json:"justification,omitempty"`
	Batch              *string        `db:"batch" json:"batch,omitempty"`
	BatchExpiry        *time.Time     `db:"batch_expiry" json:"batch_expiry,omitempty"`
}

// TotalValueCents returns the billable value of the material: the used
// quantity when consumption has been recorded, otherwise the requested
// quantity.
func (m *Material) TotalValueCents() int64 {
	qty := m.QuantityRequested
	if m.QuantityUsed != nil {
		qty = *m.QuantityUsed
	}
	return int64(qty) * m.UnitValueCents
}

// Denied reports whether the material carries the denied status.
func (m *Material) Denied() bool {
	return m.Status == MaterialStatusDenied
}

// HighCostThresholdCents is the value above which a material requires a
// written justification.
const HighCostThresholdCents int64 = 100_000

type AddMaterialRequest struct {
	Code           string      `json:"code" binding:"required,min=4,max=50"`
	Table          CodingTable `json:"coding_table" binding:"required,oneof=SIMPRO BRASINDICE ANVISA"`
	Description    string      `json:"description" binding:"required,min=5,max=255"`
	Quantity       int         `json:"quantity" binding:"required,min=1,max=1000"`
	UnitValueCents int64       `json:"unit_value_cents" binding:"min=0"`
	Justification  *string     `json:"justification" binding:"omitempty,min=20,max=1000"`
	Batch          *string     `json:"batch" binding:"omitempty,max=50"`
	BatchExpiry    *time.Time  `json:"batch_expiry"`
}

type AuthorizeMaterialRequest struct {
	QuantityGranted   int  `json:"quantity_granted" binding:"min=0"`
	AllowSubstitution bool `json:"allow_substitution"`
}

type ConsumeMaterialRequest struct {
	QuantityUsed int `json:"quantity_used" binding:"min=0"`
	// Version read by the caller; the update fails with a concurrent
	// modification error when the row has moved on.
	Version int `json:"version" binding:"required,min=1"`
}

type DenyMaterialRequest struct {
	Reason string `json:"reason" binding:"required,min=10,max=500"`
}
