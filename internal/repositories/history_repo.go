package repositories

import (
	"context"
	"fmt"

	"crmsaas/internal/audit"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
)

type HistoryRepository interface {
	audit.Sink
	ListBySubject(ctx context.Context, table string, subjectID uuid.UUID, limit, offset int) ([]*audit.Record, error)
	ListRecent(ctx context.Context, table string, limit, offset int) ([]*audit.Record, error)
	GetByID(ctx context.Context, table string, id uuid.UUID) (*audit.Record, error)
}

// historyTables is the closed set of append targets. Table names reach this
// repository from entity code, never from request input, but interpolating
// into SQL still warrants an allowlist.
var historyTables = map[string]bool{
	"customer_history": true,
	"lead_history":     true,
	"branch_history":   true,
	"category_history": true,
}

// historyRepo writes through the tenant class so records always land in the
// same physical database as the subject rows they describe.
type historyRepo struct {
	router *tenancy.Router
}

func NewHistoryRepo(router *tenancy.Router) HistoryRepository {
	return &historyRepo{router: router}
}

func (r *historyRepo) Append(ctx context.Context, table string, rec *audit.Record) error {
	if !historyTables[table] {
		return fmt.Errorf("unknown history table %q", table)
	}
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, subject_id, tenant_id, changed_by, action, field_name, old_value, new_value, changes, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, table)
	_, err = db.Exec(ctx, query,
		rec.ID, rec.SubjectID, rec.TenantID, rec.ChangedBy, string(rec.Action),
		rec.FieldName, rec.OldValue, rec.NewValue, rec.Changes, rec.Notes, rec.CreatedAt)
	return err
}

func (r *historyRepo) ListBySubject(ctx context.Context, table string, subjectID uuid.UUID, limit, offset int) ([]*audit.Record, error) {
	if !historyTables[table] {
		return nil, fmt.Errorf("unknown history table %q", table)
	}
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, subject_id, tenant_id, changed_by, action, field_name, old_value, new_value, changes, notes, created_at
		FROM %s
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, table)
	rows, err := db.Query(ctx, query, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*audit.Record
	for rows.Next() {
		rec := &audit.Record{}
		var action string
		err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.TenantID, &rec.ChangedBy, &action,
			&rec.FieldName, &rec.OldValue, &rec.NewValue, &rec.Changes, &rec.Notes, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		rec.Action = audit.Action(action)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *historyRepo) GetByID(ctx context.Context, table string, id uuid.UUID) (*audit.Record, error) {
	if !historyTables[table] {
		return nil, fmt.Errorf("unknown history table %q", table)
	}
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, subject_id, tenant_id, changed_by, action, field_name, old_value, new_value, changes, notes, created_at
		FROM %s
		WHERE id = $1
	`, table)
	rec := &audit.Record{}
	var action string
	err = db.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.SubjectID, &rec.TenantID, &rec.ChangedBy, &action,
		&rec.FieldName, &rec.OldValue, &rec.NewValue, &rec.Changes, &rec.Notes, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Action = audit.Action(action)
	return rec, nil
}

func (r *historyRepo) ListRecent(ctx context.Context, table string, limit, offset int) ([]*audit.Record, error) {
	if !historyTables[table] {
		return nil, fmt.Errorf("unknown history table %q", table)
	}
	db, err := r.router.Route(ctx, tenancy.ClassTenant)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, subject_id, tenant_id, changed_by, action, field_name, old_value, new_value, changes, notes, created_at
		FROM %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, table)
	rows, err := db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*audit.Record
	for rows.Next() {
		rec := &audit.Record{}
		var action string
		err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.TenantID, &rec.ChangedBy, &action,
			&rec.FieldName, &rec.OldValue, &rec.NewValue, &rec.Changes, &rec.Notes, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		rec.Action = audit.Action(action)
		records = append(records, rec)
	}
	return records, rows.Err()
}
