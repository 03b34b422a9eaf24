package repositories

import (
	"context"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	List(ctx context.Context, limit, offset int) ([]*models.Category, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Category, error)
	Count(ctx context.Context) (int, error)
}

const categoryColumns = `id, tenant_id, name, code, description, parent_id, notes, is_active, created_by, created_at, updated_at`

type categoryRepo struct {
	router *tenancy.Router
}

func NewCategoryRepo(router *tenancy.Router) CategoryRepository {
	return &categoryRepo{router: router}
}

func (r *categoryRepo) Create(ctx context.Context, category *models.Category) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO categories (id, tenant_id, name, code, description, parent_id, notes, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err = db.Exec(ctx, query,
		category.ID, category.TenantID, category.Name, category.Code,
		category.Description, category.ParentID, category.Notes,
		category.IsActive, category.CreatedBy)
	return err
}

func (r *categoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	category := &models.Category{}
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	if err := scanCategory(db.QueryRow(ctx, query, id), category); err != nil {
		return nil, err
	}
	return category, nil
}

func (r *categoryRepo) Update(ctx context.Context, category *models.Category) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		UPDATE categories
		SET name = $1, code = $2, description = $3, parent_id = $4, notes = $5,
		    is_active = $6, updated_at = NOW()
		WHERE id = $7
	`
	_, err = db.Exec(ctx, query,
		category.Name, category.Code, category.Description, category.ParentID,
		category.Notes, category.IsActive, category.ID)
	return err
}

func (r *categoryRepo) List(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE is_active = true
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	rows, err := db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCategories(rows)
}

func (r *categoryRepo) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Category, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE is_active = true AND parent_id = $1
		ORDER BY name
	`
	rows, err := db.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCategories(rows)
}

func (r *categoryRepo) Count(ctx context.Context) (int, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRow(ctx, `SELECT COUNT(*) FROM categories WHERE is_active = true`).Scan(&count)
	return count, err
}

func scanCategory(row pgx.Row, c *models.Category) error {
	return row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Code, &c.Description, &c.ParentID,
		&c.Notes, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
}

func collectCategories(rows pgx.Rows) ([]*models.Category, error) {
	var categories []*models.Category
	for rows.Next() {
		category := &models.Category{}
		if err := scanCategory(rows, category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}
