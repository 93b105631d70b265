package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
)

// InfluencerStore persists influencers
type InfluencerStore interface {
	Create(ctx context.Context, inf *models.Influencer) error
	List(ctx context.Context) ([]*models.Influencer, error)
	Delete(ctx context.Context, id string) error
}

// InfluencerInput is an influencer submitted by an admin
type InfluencerInput struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Handle      string              `json:"handle" validate:"required,max=100"`
	Platform    string              `json:"platform" validate:"required,oneof=twitter youtube farcaster telegram other"`
	Followers   int64               `json:"followers" validate:"gte=0"`
	ETHHoldings decimal.NullDecimal `json:"ethHoldings"`
	Notes       string              `json:"notes" validate:"max=2000"`
}

// InfluencerService manages the influencer list
type InfluencerService struct {
	influencers InfluencerStore
	validate    *validator.Validate
}

// NewInfluencerService creates an influencer service
func NewInfluencerService(influencers InfluencerStore) *InfluencerService {
	return &InfluencerService{influencers: influencers, validate: newValidator()}
}

// CreateInfluencer validates and stores an influencer
func (s *InfluencerService) CreateInfluencer(ctx context.Context, input InfluencerInput) (*models.Influencer, error) {
	input.Platform = strings.ToLower(strings.TrimSpace(input.Platform))
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid influencer", err)
	}
	if input.ETHHoldings.Valid && input.ETHHoldings.Decimal.IsNegative() {
		return nil, internalerrors.NewValidationError("invalid influencer",
			map[string]string{"ethHoldings": "must not be negative"})
	}

	inf := &models.Influencer{
		Name:        strings.TrimSpace(input.Name),
		Handle:      strings.TrimSpace(input.Handle),
		Platform:    input.Platform,
		Followers:   input.Followers,
		ETHHoldings: input.ETHHoldings,
		Notes:       input.Notes,
	}
	if err := s.influencers.Create(ctx, inf); err != nil {
		return nil, err
	}
	return inf, nil
}

// ListInfluencers returns all influencers
func (s *InfluencerService) ListInfluencers(ctx context.Context) ([]*models.Influencer, error) {
	return s.influencers.List(ctx)
}

// DeleteInfluencer removes an influencer
func (s *InfluencerService) DeleteInfluencer(ctx context.Context, id string) error {
	return s.influencers.Delete(ctx, id)
}
