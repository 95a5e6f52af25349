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

type procedureRepository struct {
	BaseRepository
}

func NewProcedureRepository(base BaseRepository) repository.ProcedureRepository {
	return &procedureRepository{base}
}

func (r *procedureRepository) Create(ctx context.Context, p *model.Procedure) error {
	query := `
		INSERT INTO procedures (
			id, guide_id, code, coding_table, description, category,
			quantity, unit_value_cents, executing_provider_id, executed_at,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	now := time.Now()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		p.ID,
		p.GuideID,
		p.Code,
		p.Table,
		p.Description,
		p.Category,
		p.Quantity,
		p.UnitValueCents,
		p.ExecutingProviderID,
		p.ExecutedAt,
		p.CreatedAt,
		p.UpdatedAt,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create procedure: %w", err)
	}
	return nil
}

func (r *procedureRepository) Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	query := `SELECT * FROM procedures WHERE id = $1`
	var p model.Procedure
	err := sqlx.GetContext(ctx, r.q(ctx), &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("procedure", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get procedure: %w", err)
	}
	return &p, nil
}

func (r *procedureRepository) Update(ctx context.Context, p *model.Procedure) error {
	query := `
		UPDATE procedures
		SET executing_provider_id = $1, executed_at = $2, updated_at = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
	`
	res, err := r.q(ctx).ExecContext(ctx, query,
		p.ExecutingProviderID,
		p.ExecutedAt,
		time.Now(),
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update procedure: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.ConcurrentModification("procedure")
	}
	p.Version++
	return nil
}

func (r *procedureRepository) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*model.Procedure, error) {
	query := `SELECT * FROM procedures WHERE guide_id = $1 ORDER BY created_at ASC`
	var procedures []*model.Procedure
	if err := sqlx.SelectContext(ctx, r.q(ctx), &procedures, query, guideID); err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", err)
	}
	return procedures, nil
}
