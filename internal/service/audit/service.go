package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/reconcile"
	"github.com/ativasaude/guia-api/internal/repository"
	"github.com/ativasaude/guia-api/pkg/metrics"
)

type FindingKind string

const (
	// FindingUncorrectedDenial flags a material whose used quantity exceeds
	// its authorized quantity without the denied status having been applied.
	// The lifecycle never persists this on its own; it appears after direct
	// data corrections that bypass the transition path.
	FindingUncorrectedDenial FindingKind = "uncorrected_denial"
	// FindingMissingDenialReason flags a denied material without a recorded
	// reason, which blocks invoice finalization.
	FindingMissingDenialReason FindingKind = "missing_denial_reason"
	// FindingOrphanAuthorization flags an authorization whose target row no
	// longer exists.
	FindingOrphanAuthorization FindingKind = "orphan_authorization"
	// FindingContradictedAuthorization flags an approved authorization whose
	// target ended up denied.
	FindingContradictedAuthorization FindingKind = "contradicted_authorization"
)

// Finding is one row of an audit report: the entity it concerns, what was
// found, and a human-readable detail.
type Finding struct {
	EntityKind string      `json:"entity_kind"`
	EntityID   uuid.UUID   `json:"entity_id"`
	Kind       FindingKind `json:"kind"`
	Detail     string      `json:"detail"`
}

// Scope narrows a scan to one guide. The zero value scans everything.
type Scope struct {
	GuideID *uuid.UUID
}

// Service is the audit engine: read-only queries over the current entity
// snapshot that report denial and orphan-authorization conditions. Nothing
// here mutates state.
type Service struct {
	materials repository.MaterialRepository
	auths     repository.AuthorizationRepository
	metrics   *metrics.Metrics
}

func NewService(
	materials repository.MaterialRepository,
	auths repository.AuthorizationRepository,
	m *metrics.Metrics,
) *Service {
	return &Service{materials: materials, auths: auths, metrics: m}
}

// DetectDenial reports whether the material is in an over-consumed state
// that the lifecycle has not yet stamped as denied. Pure and
// deterministic over the snapshot it is given.
func DetectDenial(m *model.Material) bool {
	return reconcile.OverConsumed(m) && !m.Denied()
}

// ScanDenials reports every denial-related inconsistency in scope:
// over-consumed materials missing the denied status, and denied materials
// missing a reason.
func (s *Service) ScanDenials(ctx context.Context, scope Scope) ([]Finding, error) {
	timer := time.Now()
	defer func() { s.metrics.AuditScanDuration.Observe(time.Since(timer).Seconds()) }()

	var materials []*model.Material
	var err error
	if scope.GuideID != nil {
		materials, err = s.materials.ListByGuide(ctx, *scope.GuideID)
	} else {
		materials, err = s.materials.ListOverConsumed(ctx, nil)
		if err == nil {
			var unexplained []*model.Material
			unexplained, err = s.materials.ListDeniedWithoutReason(ctx)
			materials = append(materials, unexplained...)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load materials for denial scan: %w", err)
	}

	var findings []Finding
	for _, m := range materials {
		if DetectDenial(m) {
			authorized := 0
			if m.QuantityAuthorized != nil {
				authorized = *m.QuantityAuthorized
			}
			findings = append(findings, Finding{
				EntityKind: "material",
				EntityID:   m.ID,
				Kind:       FindingUncorrectedDenial,
				Detail: fmt.Sprintf("material %s used %d of %d authorized without denied status",
					m.Code, *m.QuantityUsed, authorized),
			})
		}
		if m.Denied() && (m.DenialReason == nil || *m.DenialReason == "") {
			findings = append(findings, Finding{
				EntityKind: "material",
				EntityID:   m.ID,
				Kind:       FindingMissingDenialReason,
				Detail:     fmt.Sprintf("material %s is denied without a recorded reason", m.Code),
			})
		}
	}

	sortFindings(findings)
	s.metrics.DenialsDetected.WithLabelValues("audit_scan").Add(float64(len(findings)))
	return findings, nil
}

// ScanOrphanAuthorizations reports authorizations whose target no longer
// resolves to a live row, plus approved authorizations whose target was
// denied (the approval contradicts the outcome).
func (s *Service) ScanOrphanAuthorizations(ctx context.Context, asOf time.Time, scope Scope) ([]Finding, error) {
	timer := time.Now()
	defer func() { s.metrics.AuditScanDuration.Observe(time.Since(timer).Seconds()) }()

	var findings []Finding

	if scope.GuideID == nil {
		orphans, err := s.auths.ListOrphaned(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list orphaned authorizations: %w", err)
		}
		for _, a := range orphans {
			findings = append(findings, Finding{
				EntityKind: "authorization",
				EntityID:   a.ID,
				Kind:       FindingOrphanAuthorization,
				Detail:     fmt.Sprintf("authorization %s targets a %s that no longer exists", a.Number, a.TargetKind()),
			})
		}
	}

	contradicted, err := s.auths.ListContradicted(ctx, scope.GuideID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contradicted authorizations: %w", err)
	}
	for _, a := range contradicted {
		if !a.ActiveAt(asOf) {
			continue
		}
		findings = append(findings, Finding{
			EntityKind: "authorization",
			EntityID:   a.ID,
			Kind:       FindingContradictedAuthorization,
			Detail:     fmt.Sprintf("authorization %s is approved but its %s is denied", a.Number, a.TargetKind()),
		})
	}

	sortFindings(findings)
	s.metrics.OrphanAuthsFound.Add(float64(len(findings)))
	return findings, nil
}

// sortFindings orders a report by entity then kind so repeated scans over
// the same snapshot produce identical output.
func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.EntityID != b.EntityID {
			return a.EntityID.String() < b.EntityID.String()
		}
		return a.Kind < b.Kind
	})
}
