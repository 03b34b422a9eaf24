package repositories

import (
	"context"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByName(ctx context.Context, name string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	ListActive(ctx context.Context) ([]*models.Tenant, error)
}

// tenantRepo is control-only; the tenant registry never exists in tenant
// databases.
type tenantRepo struct {
	router *tenancy.Router
}

func NewTenantRepo(router *tenancy.Router) TenantRepository {
	return &tenantRepo{router: router}
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, database_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	_, err := r.router.Control().Exec(ctx, query, tenant.ID, tenant.Name, tenant.DatabaseName, tenant.IsActive)
	return err
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, database_name, is_active, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := r.router.Control().QueryRow(ctx, query, id).Scan(
		&tenant.ID, &tenant.Name, &tenant.DatabaseName, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// GetByName resolves an active tenant by its unique name. Inactive tenants
// are invisible here so request resolution fails closed for them.
func (r *tenantRepo) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, database_name, is_active, created_at, updated_at
		FROM tenants
		WHERE name = $1 AND is_active = true
	`
	err := r.router.Control().QueryRow(ctx, query, name).Scan(
		&tenant.ID, &tenant.Name, &tenant.DatabaseName, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) Update(ctx context.Context, tenant *models.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $1, is_active = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.router.Control().Exec(ctx, query, tenant.Name, tenant.IsActive, tenant.ID)
	return err
}

func (r *tenantRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tenants SET is_active = false, updated_at = NOW() WHERE id = $1`
	_, err := r.router.Control().Exec(ctx, query, id)
	return err
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT id, name, database_name, is_active, created_at, updated_at
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.router.Control().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTenants(rows)
}

func (r *tenantRepo) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	query := `
		SELECT id, name, database_name, is_active, created_at, updated_at
		FROM tenants
		WHERE is_active = true
		ORDER BY name
	`
	rows, err := r.router.Control().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTenants(rows)
}

func scanTenants(rows pgx.Rows) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.DatabaseName, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}
