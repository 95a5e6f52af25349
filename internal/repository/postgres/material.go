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

type materialRepository struct {
	BaseRepository
}

func NewMaterialRepository(base BaseRepository) repository.MaterialRepository {
	return &materialRepository{base}
}

func (r *materialRepository) Create(ctx context.Context, m *model.Material) error {
	query := `
		INSERT INTO materials (
			id, procedure_id, code, coding_table, description,
			quantity_requested, quantity_authorized, quantity_used,
			unit_value_cents, status, denial_reason, justification,
			batch, batch_expiry, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	now := time.Now()
	m.ID = uuid.New()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		m.ID,
		m.ProcedureID,
		m.Code,
		m.Table,
		m.Description,
		m.QuantityRequested,
		m.QuantityAuthorized,
		m.QuantityUsed,
		m.UnitValueCents,
		m.Status,
		m.DenialReason,
		m.Justification,
		m.Batch,
		m.BatchExpiry,
		m.CreatedAt,
		m.UpdatedAt,
		m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

func (r *materialRepository) Get(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	query := `SELECT * FROM materials WHERE id = $1`
	var m model.Material
	err := sqlx.GetContext(ctx, r.q(ctx), &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("material", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return &m, nil
}

// Update writes every lifecycle field in one statement conditioned on the
// version read by the caller, so concurrent consume calls on the same row
// cannot interleave: the loser sees zero rows affected.
func (r *materialRepository) Update(ctx context.Context, m *model.Material) error {
	query := `
		UPDATE materials
		SET quantity_authorized = $1, quantity_used = $2, status = $3,
			denial_reason = $4, updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7
	`
	res, err := r.q(ctx).ExecContext(ctx, query,
		m.QuantityAuthorized,
		m.QuantityUsed,
		m.Status,
		m.DenialReason,
		time.Now(),
		m.ID,
		m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update material: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.ConcurrentModification("material")
	}
	m.Version++
	return nil
}

func (r *materialRepository) ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*model.Material, error) {
	query := `SELECT * FROM materials WHERE procedure_id = $1 ORDER BY created_at ASC`
	var materials []*model.Material
	if err := sqlx.SelectContext(ctx, r.q(ctx), &materials, query, procedureID); err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return materials, nil
}

func (r *materialRepository) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*model.Material, error) {
	query := `
		SELECT m.* FROM materials m
		JOIN procedures p ON p.id = m.procedure_id
		WHERE p.guide_id = $1
		ORDER BY m.created_at ASC
	`
	var materials []*model.Material
	if err := sqlx.SelectContext(ctx, r.q(ctx), &materials, query, guideID); err != nil {
		return nil, fmt.Errorf("failed to list materials for guide: %w", err)
	}
	return materials, nil
}

func (r *materialRepository) ListOverConsumed(ctx context.Context, guideID *uuid.UUID) ([]*model.Material, error) {
	query := `
		SELECT m.* FROM materials m
		JOIN procedures p ON p.id = m.procedure_id
		WHERE m.quantity_used IS NOT NULL
		  AND m.quantity_used > COALESCE(m.quantity_authorized, 0)
	`
	args := []interface{}{}
	if guideID != nil {
		query += ` AND p.guide_id = $1`
		args = append(args, *guideID)
	}
	query += ` ORDER BY m.created_at ASC`

	var materials []*model.Material
	if err := sqlx.SelectContext(ctx, r.q(ctx), &materials, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list over-consumed materials: %w", err)
	}
	return materials, nil
}

func (r *materialRepository) ListDeniedWithoutReason(ctx context.Context) ([]*model.Material, error) {
	query := `
		SELECT * FROM materials
		WHERE status = $1 AND (denial_reason IS NULL OR denial_reason = '')
		ORDER BY created_at ASC
	`
	var materials []*model.Material
	if err := sqlx.SelectContext(ctx, r.q(ctx), &materials, query, model.MaterialStatusDenied); err != nil {
		return nil, fmt.Errorf("failed to list denied materials without reason: %w", err)
	}
	return materials, nil
}
