package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eth-reserves/internal/auth"
	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
)

// AdminStore persists admin accounts
type AdminStore interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
}

// Credentials is a login request
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is an issued admin session token
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Admin     *models.Admin `json:"admin"`
}

// AdminService authenticates operators
type AdminService struct {
	admins   AdminStore
	tokens   *auth.TokenIssuer
	validate *validator.Validate
}

// NewAdminService creates an admin service
func NewAdminService(admins AdminStore, tokens *auth.TokenIssuer) *AdminService {
	return &AdminService{admins: admins, tokens: tokens, validate: newValidator()}
}

// Login checks the credentials and issues a token. Unknown emails and wrong
// passwords produce the same error.
func (s *AdminService) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if err := s.validate.Struct(creds); err != nil {
		return nil, validationError("invalid credentials", err)
	}

	admin, err := s.admins.GetByEmail(ctx, creds.Email)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, internalerrors.NewUnauthorizedError("invalid email or password")
	}
	if err := auth.CheckPassword(admin.PasswordHash, creds.Password); err != nil {
		return nil, internalerrors.NewUnauthorizedError("invalid email or password")
	}

	token, expiresAt, err := s.tokens.Issue(admin.ID, admin.Email)
	if err != nil {
		return nil, internalerrors.NewInternalError("failed to issue token", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

// CreateAdmin hashes the password and stores a new admin
func (s *AdminService) CreateAdmin(ctx context.Context, creds Credentials) (*models.Admin, error) {
	if err := s.validate.Struct(creds); err != nil {
		return nil, validationError("invalid admin", err)
	}
	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return nil, internalerrors.NewValidationError("invalid admin", map[string]string{"password": err.Error()})
	}

	admin := &models.Admin{Email: strings.TrimSpace(creds.Email), PasswordHash: hash}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// Authenticate verifies a bearer token
func (s *AdminService) Authenticate(token string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, internalerrors.NewUnauthorizedError("invalid or expired token")
	}
	return claims, nil
}
