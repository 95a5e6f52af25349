package model

import "time"

// Provider is the facility that executes care and issues invoices.
type Provider struct {
	Base
	Name         string     `db:"name" json:"name"`
	TaxID        string     `db:"tax_id" json:"tax_id"`
	BillingEmail string     `db:"billing_email" json:"billing_email"`
	RetiredAt    *time.Time `db:"retired_at" json:"retired_at,omitempty"`
}

type CreateProviderRequest struct {
	Name         string `json:"name" binding:"required,min=3,max=255"`
	TaxID        string `json:"tax_id" binding:"required,min=11,max=20"`
	BillingEmail string `json:"billing_email" binding:"omitempty,email"`
}
