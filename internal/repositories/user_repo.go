package repositories

import (
	"context"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

const userColumns = `id, tenant_id, username, email, password_hash, first_name, last_name, is_platform_admin, is_active, created_at, updated_at`

// userRepo routes through the shared class: control database when no tenant
// is resolved, the tenant's database otherwise.
type userRepo struct {
	router *tenancy.Router
}

func NewUserRepo(router *tenancy.Router) UserRepository {
	return &userRepo{router: router}
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users (id, tenant_id, username, email, password_hash, first_name, last_name, is_platform_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err = db.Exec(ctx, query,
		user.ID, user.TenantID, user.Username, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.IsPlatformAdmin, user.IsActive)
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return nil, err
	}
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return nil, err
	}
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 AND is_active = true`, username)
	return scanUser(row)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return nil, err
	}
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active = true`, email)
	return scanUser(row)
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return err
	}
	query := `
		UPDATE users
		SET email = $1, password_hash = $2, first_name = $3, last_name = $4, is_active = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err = db.Exec(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.IsActive, user.ID)
	return err
}

func (r *userRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `UPDATE users SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *userRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	db, err := r.router.Route(ctx, tenancy.ClassShared)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := scanUserFields(rows, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	if err := scanUserFields(row, user); err != nil {
		return nil, err
	}
	return user, nil
}

func scanUserFields(row pgx.Row, user *models.User) error {
	return row.Scan(
		&user.ID, &user.TenantID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.IsPlatformAdmin, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt)
}
