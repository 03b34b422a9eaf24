package repositories

import (
	"context"
	"time"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
)

type APIHistoryRepository interface {
	Create(ctx context.Context, entry *models.APIHistory) error
	List(ctx context.Context, limit, offset int) ([]*models.APIHistory, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.APIHistory, error)
	Stats(ctx context.Context, since time.Time) (*models.APIHistoryStats, error)
}

// apiHistoryRepo is control-only: API-call logs record cross-tenant traffic
// and must be centrally queryable.
type apiHistoryRepo struct {
	router *tenancy.Router
}

func NewAPIHistoryRepo(router *tenancy.Router) APIHistoryRepository {
	return &apiHistoryRepo{router: router}
}

func (r *apiHistoryRepo) Create(ctx context.Context, entry *models.APIHistory) error {
	query := `
		INSERT INTO api_history (id, user_id, tenant_id, method, endpoint, response_status, ip_address, user_agent, execution_time, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := r.router.Control().Exec(ctx, query,
		entry.ID, entry.UserID, entry.TenantID, entry.Method, entry.Endpoint,
		entry.ResponseStatus, entry.IPAddress, entry.UserAgent, entry.ExecutionTime,
		entry.ErrorMessage)
	return err
}

func (r *apiHistoryRepo) List(ctx context.Context, limit, offset int) ([]*models.APIHistory, error) {
	query := `
		SELECT id, user_id, tenant_id, method, endpoint, response_status, ip_address, user_agent, execution_time, error_message, created_at
		FROM api_history
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.router.Control().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.APIHistory
	for rows.Next() {
		entry := &models.APIHistory{}
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.TenantID, &entry.Method,
			&entry.Endpoint, &entry.ResponseStatus, &entry.IPAddress, &entry.UserAgent,
			&entry.ExecutionTime, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats aggregates calls since the given time. FILTER keeps it one scan.
func (r *apiHistoryRepo) Stats(ctx context.Context, since time.Time) (*models.APIHistoryStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE response_status >= 400),
		       COALESCE(AVG(execution_time), 0),
		       COALESCE(MAX(execution_time), 0)
		FROM api_history
		WHERE created_at >= $1
	`
	stats := &models.APIHistoryStats{Since: since}
	err := r.router.Control().QueryRow(ctx, query, since).Scan(
		&stats.TotalCalls, &stats.ErrorCalls, &stats.AvgExecutionTime, &stats.MaxExecutionTime)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *apiHistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.APIHistory, error) {
	query := `
		SELECT id, user_id, tenant_id, method, endpoint, response_status, ip_address, user_agent, execution_time, error_message, created_at
		FROM api_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.router.Control().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.APIHistory
	for rows.Next() {
		entry := &models.APIHistory{}
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.TenantID, &entry.Method,
			&entry.Endpoint, &entry.ResponseStatus, &entry.IPAddress, &entry.UserAgent,
			&entry.ExecutionTime, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
