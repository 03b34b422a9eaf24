package repositories

import (
	"context"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BranchRepository interface {
	Create(ctx context.Context, branch *models.Branch) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Branch, error)
	Update(ctx context.Context, branch *models.Branch) error
	List(ctx context.Context, limit, offset int) ([]*models.Branch, error)
	Count(ctx context.Context) (int, error)
}

const branchColumns = `id, tenant_id, name, code, address, city, state, country, zip_code, phone, email, manager_name, manager_email, manager_phone, notes, is_active, created_by, created_at, updated_at`

type branchRepo struct {
	router *tenancy.Router
}

func NewBranchRepo(router *tenancy.Router) BranchRepository {
	return &branchRepo{router: router}
}

func (r *branchRepo) Create(ctx context.Context, branch *models.Branch) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO branches (id, tenant_id, name, code, address, city, state, country, zip_code, phone, email, manager_name, manager_email, manager_phone, notes, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
	`
	_, err = db.Exec(ctx, query,
		branch.ID, branch.TenantID, branch.Name, branch.Code, branch.Address,
		branch.City, branch.State, branch.Country, branch.ZipCode, branch.Phone,
		branch.Email, branch.ManagerName, branch.ManagerEmail, branch.ManagerPhone,
		branch.Notes, branch.IsActive, branch.CreatedBy)
	return err
}

func (r *branchRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Branch, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	branch := &models.Branch{}
	query := `SELECT ` + branchColumns + ` FROM branches WHERE id = $1`
	if err := scanBranch(db.QueryRow(ctx, query, id), branch); err != nil {
		return nil, err
	}
	return branch, nil
}

func (r *branchRepo) Update(ctx context.Context, branch *models.Branch) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		UPDATE branches
		SET name = $1, code = $2, address = $3, city = $4, state = $5, country = $6,
		    zip_code = $7, phone = $8, email = $9, manager_name = $10, manager_email = $11,
		    manager_phone = $12, notes = $13, is_active = $14, updated_at = NOW()
		WHERE id = $15
	`
	_, err = db.Exec(ctx, query,
		branch.Name, branch.Code, branch.Address, branch.City, branch.State, branch.Country,
		branch.ZipCode, branch.Phone, branch.Email, branch.ManagerName, branch.ManagerEmail,
		branch.ManagerPhone, branch.Notes, branch.IsActive, branch.ID)
	return err
}

func (r *branchRepo) List(ctx context.Context, limit, offset int) ([]*models.Branch, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + branchColumns + `
		FROM branches
		WHERE is_active = true
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	rows, err := db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []*models.Branch
	for rows.Next() {
		branch := &models.Branch{}
		if err := scanBranch(rows, branch); err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	return branches, rows.Err()
}

func (r *branchRepo) Count(ctx context.Context) (int, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRow(ctx, `SELECT COUNT(*) FROM branches WHERE is_active = true`).Scan(&count)
	return count, err
}

func scanBranch(row pgx.Row, b *models.Branch) error {
	return row.Scan(
		&b.ID, &b.TenantID, &b.Name, &b.Code, &b.Address, &b.City, &b.State,
		&b.Country, &b.ZipCode, &b.Phone, &b.Email, &b.ManagerName, &b.ManagerEmail,
		&b.ManagerPhone, &b.Notes, &b.IsActive, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
}
