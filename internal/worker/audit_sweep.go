package worker

import (
	"context"
	"time"

	"github.com/ativasaude/guia-api/internal/service/audit"
	"github.com/ativasaude/guia-api/pkg/clock"
	"github.com/ativasaude/guia-api/pkg/logger"
)

// AuditSweepWorker periodically runs the audit engine over the whole
// dataset and logs what it finds. The scans are read-only; corrections
// stay a human decision.
type AuditSweepWorker struct {
	audit    *audit.Service
	clock    clock.Clock
	interval time.Duration
	logger   *logger.Logger
}

func NewAuditSweepWorker(auditSvc *audit.Service, clk clock.Clock, interval time.Duration, logger *logger.Logger) *AuditSweepWorker {
	return &AuditSweepWorker{
		audit:    auditSvc,
		clock:    clk,
		interval: interval,
		logger:   logger,
	}
}

func (w *AuditSweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting audit sweep worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down audit sweep worker")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *AuditSweepWorker) sweep(ctx context.Context) {
	denials, err := w.audit.ScanDenials(ctx, audit.Scope{})
	if err != nil {
		w.logger.Error(err, "denial scan failed")
	} else if len(denials) > 0 {
		w.logger.Warn("denial scan found inconsistencies", "count", len(denials))
		for _, f := range denials {
			w.logger.Warn("audit finding",
				"entity_kind", f.EntityKind,
				"entity_id", f.EntityID.String(),
				"kind", string(f.Kind),
				"detail", f.Detail)
		}
	}

	orphans, err := w.audit.ScanOrphanAuthorizations(ctx, w.clock.Now(), audit.Scope{})
	if err != nil {
		w.logger.Error(err, "orphan authorization scan failed")
	} else if len(orphans) > 0 {
		w.logger.Warn("orphan authorization scan found records", "count", len(orphans))
	}
}
