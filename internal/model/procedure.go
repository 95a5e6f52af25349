package model

import (
	"time"

	"github.com/google/uuid"
)

// CodingTable identifies the reference table a procedure or material code
// comes from.
type CodingTable string

const (
	TableTUSS       CodingTable = "TUSS"
	TableSIGTAP     CodingTable = "SIGTAP"
	TableSIMPRO     CodingTable = "SIMPRO"
	TableBRASINDICE CodingTable = "BRASINDICE"
	TableCBHPM      CodingTable = "CBHPM"
	TableANVISA     CodingTable = "ANVISA"
)

type ProcedureCategory string

const (
	CategoryConsultation ProcedureCategory = "consultation"
	CategoryExam         ProcedureCategory = "exam"
	CategorySurgery      ProcedureCategory = "surgery"
	CategoryAdmission    ProcedureCategory = "admission"
	CategoryOutpatient   ProcedureCategory = "outpatient"
	CategoryTherapy      ProcedureCategory = "therapy"
	CategoryDiagnostic   ProcedureCategory = "diagnostic"
	CategoryUrgency      ProcedureCategory = "urgency"
)

// Procedure is a billable medical action within a guide. It carries no
// status field of its own; its effective state is derived from the bound
// authorization and the execution timestamp.
type Procedure struct {
	Base
	GuideID             uuid.UUID         `db:"guide_id" json:"guide_id"`
	Code                string            `db:"code" json:"code"`
	Table               CodingTable       `db:"coding_table" json:"coding_table"`
	Description         string            `db:"description" json:"description"`
	Category            ProcedureCategory `db:"category" json:"category"`
	Quantity            int               `db:"quantity" json:"quantity"`
	UnitValueCents      int64             `db:"unit_value_cents" json:"unit_value_cents"`
	ExecutingProviderID *uuid.UUID        `db:"executing_provider_id" json:"executing_provider_id,omitempty"`
	ExecutedAt          *time.Time        `db:"executed_at" json:"executed_at,omitempty"`
}

// TotalValueCents returns quantity times unit value.
func (p *Procedure) TotalValueCents() int64 {
	return int64(p.Quantity) * p.UnitValueCents
}

// Executed reports whether the procedure carries execution data.
func (p *Procedure) Executed() bool {
	return p.ExecutedAt != nil && p.ExecutingProviderID != nil
}

type AddProcedureRequest struct {
	Code           string            `json:"code" binding:"required,procedure_code"`
	Table          CodingTable       `json:"coding_table" binding:"required,oneof=TUSS SIGTAP SIMPRO BRASINDICE CBHPM"`
	Description    string            `json:"description" binding:"required,min=10,max=500"`
	Category       ProcedureCategory `json:"category" binding:"required"`
	Quantity       int               `json:"quantity" binding:"required,min=1,max=100"`
	UnitValueCents int64             `json:"unit_value_cents" binding:"required,min=1"`
}

type ExecuteProcedureRequest struct {
	ExecutingProviderID uuid.UUID  `json:"executing_provider_id" binding:"required"`
	ExecutedAt          *time.Time `json:"executed_at"`
}
