package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth-reserves/internal/auth"
	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
)

type fakeAdminStore struct {
	admins map[string]*models.Admin
}

func (s *fakeAdminStore) Create(ctx context.Context, admin *models.Admin) error {
	email := strings.ToLower(admin.Email)
	if _, ok := s.admins[email]; ok {
		return internalerrors.NewConflictError("DUPLICATE_ADMIN", "admin already exists")
	}
	admin.ID = "admin-1"
	admin.Email = email
	s.admins[email] = admin
	return nil
}

func (s *fakeAdminStore) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return s.admins[strings.ToLower(email)], nil
}

func newAdminService(t *testing.T) *AdminService {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("0123456789abcdef0123", time.Hour, "eth-reserves")
	require.NoError(t, err)
	return NewAdminService(&fakeAdminStore{admins: make(map[string]*models.Admin)}, issuer)
}

func TestAdminService_CreateAndLogin(t *testing.T) {
	svc := newAdminService(t)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, Credentials{Email: "Ops@Example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", admin.PasswordHash)

	login, err := svc.Login(ctx, Credentials{Email: "ops@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.True(t, login.ExpiresAt.After(time.Now()))

	claims, err := svc.Authenticate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.Subject)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestAdminService_LoginFailures(t *testing.T) {
	svc := newAdminService(t)
	ctx := context.Background()
	_, err := svc.CreateAdmin(ctx, Credentials{Email: "ops@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, Credentials{Email: "ops@example.com", Password: "wrong password"})
	assert.Equal(t, 401, internalerrors.Categorize(err).StatusCode)

	_, err = svc.Login(ctx, Credentials{Email: "nobody@example.com", Password: "correct horse"})
	assert.Equal(t, 401, internalerrors.Categorize(err).StatusCode)

	_, err = svc.Login(ctx, Credentials{Email: "not-an-email", Password: "x"})
	assert.True(t, internalerrors.IsValidation(err))
}

func TestAdminService_CreateRejectsShortPassword(t *testing.T) {
	svc := newAdminService(t)

	_, err := svc.CreateAdmin(context.Background(), Credentials{Email: "ops@example.com", Password: "short"})
	assert.True(t, internalerrors.IsValidation(err))
}

func TestAdminService_AuthenticateRejectsGarbage(t *testing.T) {
	svc := newAdminService(t)

	_, err := svc.Authenticate("not.a.token")
	assert.Equal(t, 401, internalerrors.Categorize(err).StatusCode)
}
