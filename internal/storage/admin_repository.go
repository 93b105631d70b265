package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
)

// AdminRepository handles admin account persistence
type AdminRepository struct {
	db *PostgresDB
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *PostgresDB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Create inserts an admin with an already hashed password
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	admin.CreatedAt = time.Now().UTC()

	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO admins (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		admin.ID, admin.Email, admin.PasswordHash, admin.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return internalerrors.NewConflictError("DUPLICATE_ADMIN", fmt.Sprintf("admin already exists: %s", admin.Email))
		}
		return dbError("create admin", err)
	}
	return nil
}

// GetByEmail returns the admin with the given email, or nil when none exists
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	err := r.db.Pool().QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM admins WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError("get admin", err)
	}
	return &admin, nil
}
