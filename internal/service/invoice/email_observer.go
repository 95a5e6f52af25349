package invoice

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository"
	"github.com/ativasaude/guia-api/pkg/notifier"
)

// EmailObserver emails the provider's billing contact when an invoice is
// submitted. Failures are logged, never propagated: the submission has
// already committed and the outbox carries the durable event.
type EmailObserver struct {
	notifier  *notifier.EmailNotifier
	providers repository.ProviderRepository
	logger    zerolog.Logger
}

func NewEmailObserver(n *notifier.EmailNotifier, providers repository.ProviderRepository, logger zerolog.Logger) *EmailObserver {
	return &EmailObserver{notifier: n, providers: providers, logger: logger}
}

func (o *EmailObserver) OnInvoiceSubmitted(ctx context.Context, inv *model.Invoice) {
	p, err := o.providers.Get(ctx, inv.ProviderID)
	if err != nil {
		o.logger.Error().Err(err).Str("invoice_id", inv.ID.String()).Msg("failed to load provider for billing email")
		return
	}
	if p.BillingEmail == "" {
		return
	}

	subject := fmt.Sprintf("Invoice %s submitted", inv.Number)
	body := fmt.Sprintf(
		"Invoice %s for the period %s to %s was submitted with a total of R$ %.2f.",
		inv.Number,
		inv.PeriodStart.Format("2006-01-02"),
		inv.PeriodEnd.Format("2006-01-02"),
		float64(inv.TotalValueCents)/100,
	)
	if err := o.notifier.Send(p.BillingEmail, subject, body); err != nil {
		o.logger.Error().Err(err).Str("invoice_id", inv.ID.String()).Msg("failed to send billing email")
	}
}
