package model

import (
	"time"

	"github.com/google/uuid"
)

type GuideStatus string

const (
	GuideStatusRequested  GuideStatus = "requested"
	GuideStatusAuthorized GuideStatus = "authorized"
	GuideStatusExecuted   GuideStatus = "executed"
	GuideStatusInvoiced   GuideStatus = "invoiced"
	GuideStatusClosed     GuideStatus = "closed"
	GuideStatusDenied     GuideStatus = "denied"
)

type CareType string

const (
	CareTypeElective  CareType = "elective"
	CareTypeUrgency   CareType = "urgency"
	CareTypeEmergency CareType = "emergency"
)

// Guide is one care request. Status is persisted for querying but is
// always recomputed from the guide's procedures and materials at every
// mutation boundary; the stored value is never the source of truth.
type Guide struct {
	Base
	GuideNumber           string      `db:"guide_number" json:"guide_number"`
	BeneficiaryID         uuid.UUID   `db:"beneficiary_id" json:"beneficiary_id"`
	ProfessionalID        uuid.UUID   `db:"professional_id" json:"professional_id"`
	CareType              CareType    `db:"care_type" json:"care_type"`
	ClinicalJustification string      `db:"clinical_justification" json:"clinical_justification,omitempty"`
	RequestedAt           time.Time   `db:"requested_at" json:"requested_at"`
	Status                GuideStatus `db:"status" json:"status"`
	TotalValueCents       int64       `db:"total_value_cents" json:"total_value_cents"`
}

type CreateGuideRequest struct {
	GuideNumber           string    `json:"guide_number" binding:"required,guide_number"`
	BeneficiaryID         uuid.UUID `json:"beneficiary_id" binding:"required"`
	ProfessionalID        uuid.UUID `json:"professional_id" binding:"required"`
	CareType              CareType  `json:"care_type" binding:"required,oneof=elective urgency emergency"`
	ClinicalJustification string    `json:"clinical_justification" binding:"max=1000"`
}

type GuideFilters struct {
	BeneficiaryID uuid.UUID
	Status        GuideStatus
	RequestedFrom time.Time
	RequestedTo   time.Time
	Pagination
}
