package model

import "time"

// RequestingProfessional is the clinician who opens a guide. Referenced,
// never owned, by Guide.
type RequestingProfessional struct {
	Base
	Name          string     `db:"name" json:"name"`
	LicenseBoard  string     `db:"license_board" json:"license_board"`
	LicenseNumber string     `db:"license_number" json:"license_number"`
	RetiredAt     *time.Time `db:"retired_at" json:"retired_at,omitempty"`
}

type CreateProfessionalRequest struct {
	Name          string `json:"name" binding:"required,min=3,max=255"`
	LicenseBoard  string `json:"license_board" binding:"required,min=2,max=20"`
	LicenseNumber string `json:"license_number" binding:"required,min=2,max=50"`
}
