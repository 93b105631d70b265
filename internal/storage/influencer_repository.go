package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// InfluencerRepository handles influencer persistence
type InfluencerRepository struct {
	db *PostgresDB
}

// NewInfluencerRepository creates a new influencer repository
func NewInfluencerRepository(db *PostgresDB) *InfluencerRepository {
	return &InfluencerRepository{db: db}
}

// Create inserts an influencer
func (r *InfluencerRepository) Create(ctx context.Context, inf *models.Influencer) error {
	if inf.ID == "" {
		inf.ID = uuid.New().String()
	}
	inf.Handle = strings.TrimPrefix(inf.Handle, "@")
	inf.CreatedAt = time.Now().UTC()

	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO influencers (id, name, handle, platform, followers, eth_holdings, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, inf.ID, inf.Name, inf.Handle, inf.Platform, inf.Followers, inf.ETHHoldings, inf.Notes, inf.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return internalerrors.NewConflictError("DUPLICATE_INFLUENCER",
				fmt.Sprintf("influencer %s already exists on %s", inf.Handle, inf.Platform))
		}
		return dbError("create influencer", err)
	}
	return nil
}

// List returns all influencers ordered by follower count
func (r *InfluencerRepository) List(ctx context.Context) ([]*models.Influencer, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, name, handle, platform, followers, eth_holdings, notes, created_at
		FROM influencers
		ORDER BY followers DESC, name
	`)
	if err != nil {
		return nil, dbError("list influencers", err)
	}
	defer rows.Close()

	var out []*models.Influencer
	for rows.Next() {
		var inf models.Influencer
		if err := rows.Scan(&inf.ID, &inf.Name, &inf.Handle, &inf.Platform, &inf.Followers, &inf.ETHHoldings, &inf.Notes, &inf.CreatedAt); err != nil {
			return nil, dbError("scan influencer", err)
		}
		out = append(out, &inf)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate influencers", err)
	}
	return out, nil
}

// Delete removes an influencer
func (r *InfluencerRepository) Delete(ctx context.Context, id string) error {
	notFound := &types.ServiceError{Code: "INFLUENCER_NOT_FOUND", Message: fmt.Sprintf("influencer not found: %s", id)}
	if _, err := uuid.Parse(id); err != nil {
		return notFound
	}

	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM influencers WHERE id = $1`, id)
	if err != nil {
		return dbError("delete influencer", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
