package repositories

import (
	"context"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	List(ctx context.Context, limit, offset int) ([]*models.Customer, error)
	Search(ctx context.Context, term string, limit, offset int) ([]*models.Customer, error)
	Count(ctx context.Context) (int, error)
}

const customerColumns = `id, tenant_id, name, email, phone, company, address, city, state, country, zip_code, is_active, created_by, created_at, updated_at`

type customerRepo struct {
	router *tenancy.Router
}

func NewCustomerRepo(router *tenancy.Router) CustomerRepository {
	return &customerRepo{router: router}
}

func (r *customerRepo) Create(ctx context.Context, customer *models.Customer) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO customers (id, tenant_id, name, email, phone, company, address, city, state, country, zip_code, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`
	_, err = db.Exec(ctx, query,
		customer.ID, customer.TenantID, customer.Name, customer.Email, customer.Phone,
		customer.Company, customer.Address, customer.City, customer.State, customer.Country,
		customer.ZipCode, customer.IsActive, customer.CreatedBy)
	return err
}

func (r *customerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	customer := &models.Customer{}
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	if err := scanCustomer(db.QueryRow(ctx, query, id), customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *customerRepo) Update(ctx context.Context, customer *models.Customer) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		UPDATE customers
		SET name = $1, email = $2, phone = $3, company = $4, address = $5,
		    city = $6, state = $7, country = $8, zip_code = $9, is_active = $10,
		    updated_at = NOW()
		WHERE id = $11
	`
	_, err = db.Exec(ctx, query,
		customer.Name, customer.Email, customer.Phone, customer.Company, customer.Address,
		customer.City, customer.State, customer.Country, customer.ZipCode, customer.IsActive,
		customer.ID)
	return err
}

func (r *customerRepo) List(ctx context.Context, limit, offset int) ([]*models.Customer, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE is_active = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func (r *customerRepo) Search(ctx context.Context, term string, limit, offset int) ([]*models.Customer, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE is_active = true
		  AND (name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%' OR company ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := db.Query(ctx, query, term, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func (r *customerRepo) Count(ctx context.Context) (int, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE is_active = true`).Scan(&count)
	return count, err
}

func scanCustomer(row pgx.Row, c *models.Customer) error {
	return row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Address,
		&c.City, &c.State, &c.Country, &c.ZipCode, &c.IsActive, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt)
}

func collectCustomers(rows pgx.Rows) ([]*models.Customer, error) {
	var customers []*models.Customer
	for rows.Next() {
		customer := &models.Customer{}
		if err := scanCustomer(rows, customer); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}
