package model

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusSubmitted InvoiceStatus = "submitted"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusContested InvoiceStatus = "contested"
)

// Active reports whether the invoice still holds its guides exclusively.
// A guide on a pending or submitted invoice cannot join another one.
func (s InvoiceStatus) Active() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusSubmitted
}

// Invoice is a provider's billing batch over a period. TotalValueCents is
// recomputed from the attached guides' non-denied lines on every
// attachment; denied lines contribute zero.
type Invoice struct {
	Base
	Number          string        `db:"number" json:"number"`
	ProviderID      uuid.UUID     `db:"provider_id" json:"provider_id"`
	IssuedAt        time.Time     `db:"issued_at" json:"issued_at"`
	PeriodStart     time.Time     `db:"period_start" json:"period_start"`
	PeriodEnd       time.Time     `db:"period_end" json:"period_end"`
	Status          InvoiceStatus `db:"status" json:"status"`
	TotalValueCents int64         `db:"total_value_cents" json:"total_value_cents"`
}

// InvoiceGuide links one invoice to one guide. Historical associations are
// retained after an invoice is paid or contested.
type InvoiceGuide struct {
	ID        uuid.UUID `db:"id" json:"id"`
	InvoiceID uuid.UUID `db:"invoice_id" json:"invoice_id"`
	GuideID   uuid.UUID `db:"guide_id" json:"guide_id"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
}

type CreateInvoiceRequest struct {
	Number      string    `json:"number" binding:"required,min=5,max=100"`
	ProviderID  uuid.UUID `json:"provider_id" binding:"required"`
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required,gtfield=PeriodStart"`
}

type AttachGuideRequest struct {
	GuideID uuid.UUID `json:"guide_id" binding:"required"`
}

type InvoiceFilters struct {
	ProviderID uuid.UUID
	Status     InvoiceStatus
	Pagination
}
