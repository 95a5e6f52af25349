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

type authorizationRepository struct {
	BaseRepository
}

func NewAuthorizationRepository(base BaseRepository) repository.AuthorizationRepository {
	return &authorizationRepository{base}
}

func (r *authorizationRepository) Create(ctx context.Context, a *model.Authorization) error {
	query := `
		INSERT INTO authorizations (
			id, number, auth_type, procedure_id, material_id,
			approved_at, valid_until, executing_provider_id, status,
			denial_reason, notes, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	now := time.Now()
	a.ID = uuid.New()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		a.ID,
		a.Number,
		a.Type,
		a.ProcedureID,
		a.MaterialID,
		a.ApprovedAt,
		a.ValidUntil,
		a.ExecutingProviderID,
		a.Status,
		a.DenialReason,
		a.Notes,
		a.CreatedAt,
		a.UpdatedAt,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create authorization: %w", err)
	}
	return nil
}

func (r *authorizationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Authorization, error) {
	query := `SELECT * FROM authorizations WHERE id = $1`
	var a model.Authorization
	err := sqlx.GetContext(ctx, r.q(ctx), &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("authorization", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}
	return &a, nil
}

func (r *authorizationRepository) Update(ctx context.Context, a *model.Authorization) error {
	query := `
		UPDATE authorizations
		SET status = $1, denial_reason = $2, executing_provider_id = $3,
			updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	res, err := r.q(ctx).ExecContext(ctx, query,
		a.Status,
		a.DenialReason,
		a.ExecutingProviderID,
		time.Now(),
		a.ID,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update authorization: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.ConcurrentModification("authorization")
	}
	a.Version++
	return nil
}

func (r *authorizationRepository) GetForTarget(ctx context.Context, kind model.TargetKind, targetID uuid.UUID) (*model.Authorization, error) {
	column := "procedure_id"
	if kind == model.TargetMaterial {
		column = "material_id"
	}
	query := fmt.Sprintf(`
		SELECT * FROM authorizations
		WHERE %s = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, column)

	var a model.Authorization
	err := sqlx.GetContext(ctx, r.q(ctx), &a, query, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization for target: %w", err)
	}
	return &a, nil
}

func (r *authorizationRepository) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*model.Authorization, error) {
	query := `
		SELECT a.* FROM authorizations a
		LEFT JOIN procedures p ON p.id = a.procedure_id
		LEFT JOIN materials m ON m.id = a.material_id
		LEFT JOIN procedures mp ON mp.id = m.procedure_id
		WHERE p.guide_id = $1 OR mp.guide_id = $1
		ORDER BY a.created_at ASC
	`
	var auths []*model.Authorization
	if err := sqlx.SelectContext(ctx, r.q(ctx), &auths, query, guideID); err != nil {
		return nil, fmt.Errorf("failed to list authorizations for guide: %w", err)
	}
	return auths, nil
}

func (r *authorizationRepository) ListOrphaned(ctx context.Context) ([]*model.Authorization, error) {
	query := `
		SELECT a.* FROM authorizations a
		LEFT JOIN procedures p ON p.id = a.procedure_id
		LEFT JOIN materials m ON m.id = a.material_id
		WHERE (a.procedure_id IS NOT NULL AND p.id IS NULL)
		   OR (a.material_id IS NOT NULL AND m.id IS NULL)
		ORDER BY a.created_at ASC
	`
	var auths []*model.Authorization
	if err := sqlx.SelectContext(ctx, r.q(ctx), &auths, query); err != nil {
		return nil, fmt.Errorf("failed to list orphaned authorizations: %w", err)
	}
	return auths, nil
}

func (r *authorizationRepository) ListContradicted(ctx context.Context, guideID *uuid.UUID) ([]*model.Authorization, error) {
	query := `
		SELECT a.* FROM authorizations a
		JOIN materials m ON m.id = a.material_id
		JOIN procedures p ON p.id = m.procedure_id
		WHERE a.status = $1 AND m.status = $2
	`
	args := []interface{}{model.AuthorizationStatusApproved, model.MaterialStatusDenied}
	if guideID != nil {
		query += ` AND p.guide_id = $3`
		args = append(args, *guideID)
	}
	query += ` ORDER BY a.created_at ASC`

	var auths []*model.Authorization
	if err := sqlx.SelectContext(ctx, r.q(ctx), &auths, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list contradicted authorizations: %w", err)
	}
	return auths, nil
}
