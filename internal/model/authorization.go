package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type AuthorizationType string

const (
	AuthorizationTypeProcedure AuthorizationType = "procedure"
	AuthorizationTypeOPME      AuthorizationType = "opme"
)

type AuthorizationStatus string

const (
	AuthorizationStatusPending   AuthorizationStatus = "pending"
	AuthorizationStatusApproved  AuthorizationStatus = "approved"
	AuthorizationStatusDenied    AuthorizationStatus = "denied"
	AuthorizationStatusExpired   AuthorizationStatus = "expired"
	AuthorizationStatusCancelled AuthorizationStatus = "cancelled"
)

// TargetKind names the side of the procedure/material union an
// authorization is bound to.
type TargetKind string

const (
	TargetProcedure TargetKind = "procedure"
	TargetMaterial  TargetKind = "material"
)

// Authorization is an approval record bound to exactly one of a procedure
// or a material. The two constructors below are the only way to build one,
// so a record referencing both sides cannot exist.
type Authorization struct {
	Base
	Number              string              `db:"number" json:"number"`
	Type                AuthorizationType   `db:"auth_type" json:"auth_type"`
	ProcedureID         *uuid.UUID          `db:"procedure_id" json:"procedure_id,omitempty"`
	MaterialID          *uuid.UUID          `db:"material_id" json:"material_id,omitempty"`
	ApprovedAt          time.Time           `db:"approved_at" json:"approved_at"`
	ValidUntil          time.Time           `db:"valid_until" json:"valid_until"`
	ExecutingProviderID *uuid.UUID          `db:"executing_provider_id" json:"executing_provider_id,omitempty"`
	Status              AuthorizationStatus `db:"status" json:"status"`
	DenialReason        *string             `db:"denial_reason" json:"denial_reason,omitempty"`
	Notes               *string             `db:"notes" json:"notes,omitempty"`
}

var (
	errValidityWindow = errors.New("authorization validity must end after approval and within one year")
	errNilTarget      = errors.New("authorization target id is required")
)

// NewProcedureAuthorization builds an authorization bound to a procedure.
func NewProcedureAuthorization(number string, procedureID uuid.UUID, approvedAt, validUntil time.Time) (*Authorization, error) {
	if procedureID == uuid.Nil {
		return nil, errNilTarget
	}
	if err := checkValidity(approvedAt, validUntil); err != nil {
		return nil, err
	}
	return &Authorization{
		Number:      number,
		Type:        AuthorizationTypeProcedure,
		ProcedureID: &procedureID,
		ApprovedAt:  approvedAt,
		ValidUntil:  validUntil,
		Status:      AuthorizationStatusPending,
	}, nil
}

// NewMaterialAuthorization builds an OPME authorization bound to a material.
func NewMaterialAuthorization(number string, materialID uuid.UUID, approvedAt, validUntil time.Time) (*Authorization, error) {
	if materialID == uuid.Nil {
		return nil, errNilTarget
	}
	if err := checkValidity(approvedAt, validUntil); err != nil {
		return nil, err
	}
	return &Authorization{
		Number:     number,
		Type:       AuthorizationTypeOPME,
		MaterialID: &materialID,
		ApprovedAt: approvedAt,
		ValidUntil: validUntil,
		Status:     AuthorizationStatusPending,
	}, nil
}

func checkValidity(approvedAt, validUntil time.Time) error {
	if !validUntil.After(approvedAt) || validUntil.Sub(approvedAt) > 365*24*time.Hour {
		return errValidityWindow
	}
	return nil
}

// TargetKind returns which side of the union the authorization is bound to.
func (a *Authorization) TargetKind() TargetKind {
	if a.MaterialID != nil {
		return TargetMaterial
	}
	return TargetProcedure
}

// TargetID returns the bound entity id.
func (a *Authorization) TargetID() uuid.UUID {
	if a.MaterialID != nil {
		return *a.MaterialID
	}
	if a.ProcedureID != nil {
		return *a.ProcedureID
	}
	return uuid.Nil
}

// ExpiredAt reports whether the authorization validity window has passed
// at the given instant. Expiry is time-dependent: callers must use this
// rather than trust the stored status, which is not eagerly updated.
func (a *Authorization) ExpiredAt(asOf time.Time) bool {
	return a.ValidUntil.Before(asOf)
}

// ActiveAt reports whether the authorization is approved and not expired
// at the given instant.
func (a *Authorization) ActiveAt(asOf time.Time) bool {
	return a.Status == AuthorizationStatusApproved && !a.ExpiredAt(asOf)
}

type BindAuthorizationRequest struct {
	Number              string            `json:"number" binding:"required,min=5,max=50"`
	Type                AuthorizationType `json:"auth_type" binding:"required,oneof=procedure opme"`
	ProcedureID         *uuid.UUID        `json:"procedure_id"`
	MaterialID          *uuid.UUID        `json:"material_id"`
	ValidUntil          time.Time         `json:"valid_until" binding:"required"`
	ExecutingProviderID *uuid.UUID        `json:"executing_provider_id"`
	Notes               *string           `json:"notes" binding:"omitempty,max=1000"`
}

type RevokeAuthorizationRequest struct {
	Reason string `json:"reason" binding:"required,min=10,max=1000"`
}
