package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ativasaude/guia-api/internal/model"
	"github.com/ativasaude/guia-api/internal/repository"
	"github.com/ativasaude/guia-api/pkg/clock"
	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

// Service manages the reference entities guides point at: beneficiaries,
// requesting professionals and providers.
type Service struct {
	beneficiaries repository.BeneficiaryRepository
	professionals repository.ProfessionalRepository
	providers     repository.ProviderRepository
	clock         clock.Clock
}

func NewService(
	beneficiaries repository.BeneficiaryRepository,
	professionals repository.ProfessionalRepository,
	providers repository.ProviderRepository,
	clk clock.Clock,
) *Service {
	return &Service{
		beneficiaries: beneficiaries,
		professionals: professionals,
		providers:     providers,
		clock:         clk,
	}
}

func (s *Service) CreateBeneficiary(ctx context.Context, req *model.CreateBeneficiaryRequest) (*model.Beneficiary, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if existing, err := s.beneficiaries.GetByIdentifier(ctx, identifier); err == nil && existing != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("beneficiary %s already exists", identifier), nil)
	} else if err != nil && !apperrors.IsCode(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if req.DateOfBirth != nil && req.DateOfBirth.After(s.clock.Now()) {
		return nil, apperrors.BadRequest("date of birth cannot be in the future", nil)
	}

	b := &model.Beneficiary{
		Identifier:  identifier,
		Sex:         req.Sex,
		DateOfBirth: req.DateOfBirth,
	}
	if err := s.beneficiaries.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return b, nil
}

func (s *Service) GetBeneficiary(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	return s.beneficiaries.Get(ctx, id)
}

// RetireBeneficiary soft-retires a beneficiary. Existing guides keep
// their reference; new guides for a retired beneficiary are still
// accepted because retroactive billing outlives coverage.
func (s *Service) RetireBeneficiary(ctx context.Context, id uuid.UUID) error {
	if _, err := s.beneficiaries.Get(ctx, id); err != nil {
		return err
	}
	return s.beneficiaries.Retire(ctx, id, s.clock.Now())
}

func (s *Service) CreateProfessional(ctx context.Context, req *model.CreateProfessionalRequest) (*model.RequestingProfessional, error) {
	p := &model.RequestingProfessional{
		Name:          strings.TrimSpace(req.Name),
		LicenseBoard:  strings.ToUpper(strings.TrimSpace(req.LicenseBoard)),
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
	}
	if err := s.professionals.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create professional: %w", err)
	}
	return p, nil
}

func (s *Service) GetProfessional(ctx context.Context, id uuid.UUID) (*model.RequestingProfessional, error) {
	return s.professionals.Get(ctx, id)
}

func (s *Service) CreateProvider(ctx context.Context, req *model.CreateProviderRequest) (*model.Provider, error) {
	p := &model.Provider{
		Name:         strings.TrimSpace(req.Name),
		TaxID:        strings.TrimSpace(req.TaxID),
		BillingEmail: strings.TrimSpace(req.BillingEmail),
	}
	if err := s.providers.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return p, nil
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	return s.providers.Get(ctx, id)
}
