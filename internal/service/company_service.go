package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// CompanyStore persists companies
type CompanyStore interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id string) (*models.Company, error)
	List(ctx context.Context, status types.CompanyStatus) ([]*models.Company, error)
	Update(ctx context.Context, company *models.Company) error
	SetReserve(ctx context.Context, id string, reserve decimal.Decimal) error
}

// CompanyInput is the editable part of a company
type CompanyInput struct {
	Name                string               `json:"name" validate:"required,max=200"`
	Category            string               `json:"category" validate:"max=100"`
	SecondaryCategories []string             `json:"secondaryCategories" validate:"max=10,dive,max=100"`
	Ticker              string               `json:"ticker" validate:"max=16"`
	AccountingType      types.AccountingType `json:"accountingType" validate:"required,oneof=SELF_REPORTED PUBLIC_REPORTS WALLET_TRACKING"`
	MarketCapTracking   string               `json:"marketCapTracking" validate:"omitempty,oneof='Public Listing' Crypto"`
	Status              types.CompanyStatus  `json:"status" validate:"omitempty,oneof=ACTIVE PENDING INACTIVE"`
	CurrentReserve      decimal.Decimal      `json:"currentReserve" validate:"gte=0"`
	Website             string               `json:"website" validate:"omitempty,url"`
}

// CompanyService manages company records for admins and public listings
type CompanyService struct {
	companies CompanyStore
	validate  *validator.Validate
}

// NewCompanyService creates a company service
func NewCompanyService(companies CompanyStore) *CompanyService {
	return &CompanyService{companies: companies, validate: newValidator()}
}

func (s *CompanyService) apply(company *models.Company, input CompanyInput) {
	company.Name = strings.TrimSpace(input.Name)
	company.Category = input.Category
	company.SecondaryCategories = input.SecondaryCategories
	company.Ticker = strings.ToUpper(strings.TrimSpace(input.Ticker))
	company.AccountingType = input.AccountingType
	company.MarketCapTracking = input.MarketCapTracking
	company.Website = input.Website
	if input.Status != "" {
		company.Status = input.Status
	}
}

// CreateCompany validates and stores a new company. Status defaults to PENDING.
func (s *CompanyService) CreateCompany(ctx context.Context, input CompanyInput) (*models.Company, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid company", err)
	}

	company := &models.Company{
		Status:         types.CompanyStatusPending,
		CurrentReserve: input.CurrentReserve,
	}
	s.apply(company, input)

	if err := s.companies.Create(ctx, company); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"companyId": company.ID,
		"status":    company.Status,
	}).Info("company created")
	return company, nil
}

// UpdateCompany overwrites the editable fields of a company. The reserve is left untouched.
func (s *CompanyService) UpdateCompany(ctx context.Context, id string, input CompanyInput) (*models.Company, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid company", err)
	}

	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.apply(company, input)

	if err := s.companies.Update(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// SetStatus changes the lifecycle status of a company
func (s *CompanyService) SetStatus(ctx context.Context, id string, status types.CompanyStatus) (*models.Company, error) {
	if !status.IsValid() {
		return nil, internalerrors.NewValidationError("invalid status", map[string]string{"status": "must be one of [ACTIVE PENDING INACTIVE]"})
	}

	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	company.Status = status
	if err := s.companies.Update(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// SetReserve overwrites the manually maintained reserve
func (s *CompanyService) SetReserve(ctx context.Context, id string, reserve decimal.Decimal) (*models.Company, error) {
	if reserve.IsNegative() {
		return nil, internalerrors.NewValidationError("invalid reserve", map[string]string{"currentReserve": "must be at least 0"})
	}
	if err := s.companies.SetReserve(ctx, id, reserve); err != nil {
		return nil, err
	}
	return s.companies.GetByID(ctx, id)
}

// GetCompany returns a company by ID
func (s *CompanyService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	return s.companies.GetByID(ctx, id)
}

// GetPublicCompany returns a company only if it is ACTIVE
func (s *CompanyService) GetPublicCompany(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company.Status != types.CompanyStatusActive {
		return nil, internalerrors.NewNotFoundError("company", id)
	}
	return company, nil
}

// ListCompanies returns companies, optionally filtered by status
func (s *CompanyService) ListCompanies(ctx context.Context, status types.CompanyStatus) ([]*models.Company, error) {
	if status != "" && !status.IsValid() {
		return nil, internalerrors.NewInvalidParameterError("status", "must be one of ACTIVE, PENDING, INACTIVE")
	}
	return s.companies.List(ctx, status)
}
