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

type guideRepository struct {
	BaseRepository
}

func NewGuideRepository(base BaseRepository) repository.GuideRepository {
	return &guideRepository{base}
}

func (r *guideRepository) Create(ctx context.Context, g *model.Guide) error {
	query := `
		INSERT INTO guides (
			id, guide_number, beneficiary_id, professional_id, care_type,
			clinical_justification, requested_at, status, total_value_cents,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	now := time.Now()
	g.ID = uuid.New()
	g.CreatedAt = now
	g.UpdatedAt = now
	g.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		g.ID,
		g.GuideNumber,
		g.BeneficiaryID,
		g.ProfessionalID,
		g.CareType,
		g.ClinicalJustification,
		g.RequestedAt,
		g.Status,
		g.TotalValueCents,
		g.CreatedAt,
		g.UpdatedAt,
		g.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create guide: %w", err)
	}
	return nil
}

func (r *guideRepository) Get(ctx context.Context, id uuid.UUID) (*model.Guide, error) {
	query := `SELECT * FROM guides WHERE id = $1`
	var g model.Guide
	err := sqlx.GetContext(ctx, r.q(ctx), &g, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("guide", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guide: %w", err)
	}
	return &g, nil
}

func (r *guideRepository) GetByNumber(ctx context.Context, number string) (*model.Guide, error) {
	query := `SELECT * FROM guides WHERE guide_number = $1`
	var g model.Guide
	err := sqlx.GetContext(ctx, r.q(ctx), &g, query, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("guide", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guide by number: %w", err)
	}
	return &g, nil
}

func (r *guideRepository) Update(ctx context.Context, g *model.Guide) error {
	query := `
		UPDATE guides
		SET status = $1, total_value_cents = $2, clinical_justification = $3,
			updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	res, err := r.q(ctx).ExecContext(ctx, query,
		g.Status,
		g.TotalValueCents,
		g.ClinicalJustification,
		time.Now(),
		g.ID,
		g.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update guide: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.ConcurrentModification("guide")
	}
	g.Version++
	return nil
}

func (r *guideRepository) List(ctx context.Context, filters *model.GuideFilters) ([]*model.Guide, error) {
	query := `SELECT * FROM guides WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filters.BeneficiaryID != uuid.Nil {
		query += fmt.Sprintf(" AND beneficiary_id = $%d", i)
		args = append(args, filters.BeneficiaryID)
		i++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, filters.Status)
		i++
	}
	if !filters.RequestedFrom.IsZero() {
		query += fmt.Sprintf(" AND requested_at >= $%d", i)
		args = append(args, filters.RequestedFrom)
		i++
	}
	if !filters.RequestedTo.IsZero() {
		query += fmt.Sprintf(" AND requested_at <= $%d", i)
		args = append(args, filters.RequestedTo)
		i++
	}

	query += fmt.Sprintf(" ORDER BY requested_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, filters.Limit(), filters.Offset())

	var guides []*model.Guide
	if err := sqlx.SelectContext(ctx, r.q(ctx), &guides, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list guides: %w", err)
	}
	return guides, nil
}
