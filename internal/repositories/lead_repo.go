package repositories

import (
	"context"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	List(ctx context.Context, limit, offset int) ([]*models.Lead, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Lead, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Lead, error)
	Count(ctx context.Context) (int, error)

	CreateCallSummary(ctx context.Context, summary *models.LeadCallSummary) error
	ListCallSummaries(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]*models.LeadCallSummary, error)
}

const leadColumns = `id, tenant_id, customer_id, name, email, phone, status, source, notes, is_active, created_by, created_at, updated_at`

type leadRepo struct {
	router *tenancy.Router
}

func NewLeadRepo(router *tenancy.Router) LeadRepository {
	return &leadRepo{router: router}
}

func (r *leadRepo) Create(ctx context.Context, lead *models.Lead) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO leads (id, tenant_id, customer_id, name, email, phone, status, source, notes, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err = db.Exec(ctx, query,
		lead.ID, lead.TenantID, lead.CustomerID, lead.Name, lead.Email, lead.Phone,
		lead.Status, lead.Source, lead.Notes, lead.IsActive, lead.CreatedBy)
	return err
}

func (r *leadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	lead := &models.Lead{}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	if err := scanLead(db.QueryRow(ctx, query, id), lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (r *leadRepo) Update(ctx context.Context, lead *models.Lead) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		UPDATE leads
		SET customer_id = $1, name = $2, email = $3, phone = $4, status = $5,
		    source = $6, notes = $7, is_active = $8, updated_at = NOW()
		WHERE id = $9
	`
	_, err = db.Exec(ctx, query,
		lead.CustomerID, lead.Name, lead.Email, lead.Phone, lead.Status,
		lead.Source, lead.Notes, lead.IsActive, lead.ID)
	return err
}

func (r *leadRepo) List(ctx context.Context, limit, offset int) ([]*models.Lead, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE is_active = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (r *leadRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Lead, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE is_active = true AND status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (r *leadRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Lead, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE is_active = true AND customer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (r *leadRepo) Count(ctx context.Context) (int, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE is_active = true`).Scan(&count)
	return count, err
}

func (r *leadRepo) CreateCallSummary(ctx context.Context, summary *models.LeadCallSummary) error {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO lead_call_summaries (id, tenant_id, lead_id, summary, call_time, call_outcome, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err = db.Exec(ctx, query,
		summary.ID, summary.TenantID, summary.LeadID, summary.Summary,
		summary.CallTime, summary.Outcome, summary.IsActive, summary.CreatedBy)
	return err
}

func (r *leadRepo) ListCallSummaries(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]*models.LeadCallSummary, error) {
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, tenant_id, lead_id, summary, call_time, call_outcome, is_active, created_by, created_at, updated_at
		FROM lead_call_summaries
		WHERE lead_id = $1 AND is_active = true
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := db.Query(ctx, query, leadID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.LeadCallSummary
	for rows.Next() {
		s := &models.LeadCallSummary{}
		err := rows.Scan(&s.ID, &s.TenantID, &s.LeadID, &s.Summary, &s.CallTime,
			&s.Outcome, &s.IsActive, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanLead(row pgx.Row, l *models.Lead) error {
	return row.Scan(
		&l.ID, &l.TenantID, &l.CustomerID, &l.Name, &l.Email, &l.Phone,
		&l.Status, &l.Source, &l.Notes, &l.IsActive, &l.CreatedBy,
		&l.CreatedAt, &l.UpdatedAt)
}

func collectLeads(rows pgx.Rows) ([]*models.Lead, error) {
	var leads []*models.Lead
	for rows.Next() {
		lead := &models.Lead{}
		if err := scanLead(rows, lead); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
