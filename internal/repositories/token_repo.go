package repositories

import (
	"context"
	"fmt"
	"time"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
)

type TokenRepository interface {
	Create(ctx context.Context, token *models.AuthToken) error
	GetByHash(ctx context.Context, hash string) (*models.AuthToken, error)
	DeleteByHash(ctx context.Context, hash string) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type tokenRepo struct {
	router *tenancy.Router
}

func NewTokenRepo(router *tenancy.Router) TokenRepository {
	return &tokenRepo{router: router}
}

func (r *tokenRepo) Create(ctx context.Context, token *models.AuthToken) error {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO auth_tokens (id, user_id, token_hash, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err = db.Exec(ctx, query, token.ID, token.UserID, token.TokenHash)
	return err
}

func (r *tokenRepo) GetByHash(ctx context.Context, hash string) (*models.AuthToken, error) {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return nil, err
	}
	token := &models.AuthToken{}
	query := `SELECT id, user_id, token_hash, created_at FROM auth_tokens WHERE token_hash = $1`
	err = db.QueryRow(ctx, query, hash).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.CreatedAt)
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r *tokenRepo) DeleteByHash(ctx context.Context, hash string) error {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `DELETE FROM auth_tokens WHERE token_hash = $1`, hash)
	return err
}

func (r *tokenRepo) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteOlderThan prunes tokens past their lifetime from whichever store the
// context routes to.
func (r *tokenRepo) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return 0, err
	}
	interval := fmt.Sprintf("%d seconds", int64(age.Seconds()))
	tag, err := db.Exec(ctx, `DELETE FROM auth_tokens WHERE created_at < NOW() - $1::interval`, interval)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
