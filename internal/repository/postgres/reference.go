package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

// Reference-data repositories: beneficiaries, requesting professionals
// and providers are created once, rarely mutated and never deleted.

type beneficiaryRepository struct {
	BaseRepository
}

func NewBeneficiaryRepository(base BaseRepository) repository.BeneficiaryRepository {
	return &beneficiaryRepository{base}
}

func (r *beneficiaryRepository) Create(ctx context.Context, b *model.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (
			id, identifier, sex, date_of_birth, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now()
	b.ID = uuid.New()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		b.ID, b.Identifier, b.Sex, b.DateOfBirth, b.CreatedAt, b.UpdatedAt, b.Version)
	if err != nil {
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return nil
}

func (r *beneficiaryRepository) Get(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	var b model.Beneficiary
	err := sqlx.GetContext(ctx, r.q(ctx), &b, `SELECT * FROM beneficiaries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("beneficiary", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficiary: %w", err)
	}
	return &b, nil
}

func (r *beneficiaryRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.Beneficiary, error) {
	var b model.Beneficiary
	err := sqlx.GetContext(ctx, r.q(ctx), &b, `SELECT * FROM beneficiaries WHERE identifier = $1`, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("beneficiary", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficiary by identifier: %w", err)
	}
	return &b, nil
}

func (r *beneficiaryRepository) Retire(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE beneficiaries SET retired_at = $1, updated_at = $1 WHERE id = $2`
	_, err := r.q(ctx).ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to retire beneficiary: %w", err)
	}
	return nil
}

type professionalRepository struct {
	BaseRepository
}

func NewProfessionalRepository(base BaseRepository) repository.ProfessionalRepository {
	return &professionalRepository{base}
}

func (r *professionalRepository) Create(ctx context.Context, p *model.RequestingProfessional) error {
	query := `
		INSERT INTO professionals (
			id, name, license_board, license_number, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		p.ID, p.Name, p.LicenseBoard, p.LicenseNumber, p.CreatedAt, p.UpdatedAt, p.Version)
	if err != nil {
		return fmt.Errorf("failed to create professional: %w", err)
	}
	return nil
}

func (r *professionalRepository) Get(ctx context.Context, id uuid.UUID) (*model.RequestingProfessional, error) {
	var p model.RequestingProfessional
	err := sqlx.GetContext(ctx, r.q(ctx), &p, `SELECT * FROM professionals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("professional", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get professional: %w", err)
	}
	return &p, nil
}

type providerRepository struct {
	BaseRepository
}

func NewProviderRepository(base BaseRepository) repository.ProviderRepository {
	return &providerRepository{base}
}

func (r *providerRepository) Create(ctx context.Context, p *model.Provider) error {
	query := `
		INSERT INTO providers (
			id, name, tax_id, billing_email, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		p.ID, p.Name, p.TaxID, p.BillingEmail, p.CreatedAt, p.UpdatedAt, p.Version)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

func (r *providerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	err := sqlx.GetContext(ctx, r.q(ctx), &p, `SELECT * FROM providers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("provider", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}
