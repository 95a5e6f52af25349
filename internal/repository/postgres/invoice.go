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

type invoiceRepository struct {
	BaseRepository
}

func NewInvoiceRepository(base BaseRepository) repository.InvoiceRepository {
	return &invoiceRepository{base}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, number, provider_id, issued_at, period_start, period_end,
			status, total_value_cents, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now()
	inv.ID = uuid.New()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.Version = 1

	_, err := r.q(ctx).ExecContext(ctx, query,
		inv.ID,
		inv.Number,
		inv.ProviderID,
		inv.IssuedAt,
		inv.PeriodStart,
		inv.PeriodEnd,
		inv.Status,
		inv.TotalValueCents,
		inv.CreatedAt,
		inv.UpdatedAt,
		inv.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	query := `SELECT * FROM invoices WHERE id = $1`
	var inv model.Invoice
	err := sqlx.GetContext(ctx, r.q(ctx), &inv, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("invoice", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	query := `SELECT * FROM invoices WHERE number = $1`
	var inv model.Invoice
	err := sqlx.GetContext(ctx, r.q(ctx), &inv, query, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("invoice", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice by number: %w", err)
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *model.Invoice) error {
	query := `
		UPDATE invoices
		SET status = $1, total_value_cents = $2, updated_at = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
	`
	res, err := r.q(ctx).ExecContext(ctx, query,
		inv.Status,
		inv.TotalValueCents,
		time.Now(),
		inv.ID,
		inv.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.ConcurrentModification("invoice")
	}
	inv.Version++
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filters *model.InvoiceFilters) ([]*model.Invoice, error) {
	query := `SELECT * FROM invoices WHERE 1=1`
	args := []interface{}{}
	i := 1

	if filters.ProviderID != uuid.Nil {
		query += fmt.Sprintf(" AND provider_id = $%d", i)
		args = append(args, filters.ProviderID)
		i++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, filters.Status)
		i++
	}

	query += fmt.Sprintf(" ORDER BY issued_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, filters.Limit(), filters.Offset())

	var invoices []*model.Invoice
	if err := sqlx.SelectContext(ctx, r.q(ctx), &invoices, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (r *invoiceRepository) AttachGuide(ctx context.Context, link *model.InvoiceGuide) error {
	query := `
		INSERT INTO invoice_guides (id, invoice_id, guide_id, added_at)
		VALUES ($1, $2, $3, $4)
	`
	link.ID = uuid.New()
	link.AddedAt = time.Now()

	_, err := r.q(ctx).ExecContext(ctx, query, link.ID, link.InvoiceID, link.GuideID, link.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to attach guide to invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) ListGuideIDs(ctx context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT guide_id FROM invoice_guides WHERE invoice_id = $1 ORDER BY added_at ASC`
	var ids []uuid.UUID
	if err := sqlx.SelectContext(ctx, r.q(ctx), &ids, query, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to list invoice guides: %w", err)
	}
	return ids, nil
}

func (r *invoiceRepository) ActiveInvoiceForGuide(ctx context.Context, guideID uuid.UUID) (*model.Invoice, error) {
	query := `
		SELECT i.* FROM invoices i
		JOIN invoice_guides ig ON ig.invoice_id = i.id
		WHERE ig.guide_id = $1 AND i.status IN ($2, $3)
		LIMIT 1
	`
	var inv model.Invoice
	err := sqlx.GetContext(ctx, r.q(ctx), &inv, query, guideID,
		model.InvoiceStatusPending, model.InvoiceStatusSubmitted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active invoice for guide: %w", err)
	}
	return &inv, nil
}
