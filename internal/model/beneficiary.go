package model

import (
	"time"
)

// Beneficiary is the person receiving care. Identity is immutable once
// created; records are soft-retired, never deleted.
type Beneficiary struct {
	Base
	Identifier  string     `db:"identifier" json:"identifier"`
	Sex         *string    `db:"sex" json:"sex,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	RetiredAt   *time.Time `db:"retired_at" json:"retired_at,omitempty"`
}

type CreateBeneficiaryRequest struct {
	Identifier  string     `json:"identifier" binding:"required,min=5,max=255"`
	Sex         *string    `json:"sex" binding:"omitempty,oneof=M F"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}
