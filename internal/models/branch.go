package models

import (
	"time"

	"github.com/google/uuid"

	"crmsaas/internal/audit"
)

// Branch is tenant-local.
type Branch struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TenantID     uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Name         string     `json:"name" db:"name"`
	Code         *string    `json:"code" db:"code"`
	Address      *string    `json:"address" db:"address"`
	City         *string    `json:"city" db:"city"`
	State        *string    `json:"state" db:"state"`
	Country      *string    `json:"country" db:"country"`
	ZipCode      *string    `json:"zip_code" db:"zip_code"`
	Phone        *string    `json:"phone" db:"phone"`
	Email        *string    `json:"email" db:"email"`
	ManagerName  *string    `json:"manager_name" db:"manager_name"`
	ManagerEmail *string    `json:"manager_email" db:"manager_email"`
	ManagerPhone *string    `json:"manager_phone" db:"manager_phone"`
	Notes        *string    `json:"notes" db:"notes"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedBy    *uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

var BranchTrackedFields = []string{
	"name", "code", "address", "city", "state", "country", "zip_code",
	"phone", "email", "manager_name", "manager_email", "manager_phone",
	"notes", "is_active",
}

func (b *Branch) AuditSnapshot() map[string]audit.FieldValue {
	return map[string]audit.FieldValue{
		"name":          audit.StringField(b.Name),
		"code":          audit.NullStringField(b.Code),
		"address":       audit.NullStringField(b.Address),
		"city":          audit.NullStringField(b.City),
		"state":         audit.NullStringField(b.State),
		"country":       audit.NullStringField(b.Country),
		"zip_code":      audit.NullStringField(b.ZipCode),
		"phone":         audit.NullStringField(b.Phone),
		"email":         audit.NullStringField(b.Email),
		"manager_name":  audit.NullStringField(b.ManagerName),
		"manager_email": audit.NullStringField(b.ManagerEmail),
		"manager_phone": audit.NullStringField(b.ManagerPhone),
		"notes":         audit.NullStringField(b.Notes),
		"is_active":     audit.BoolField(b.IsActive),
	}
}

func (b *Branch) AuditSubject() audit.Subject {
	return audit.Subject{
		Table:       "branch_history",
		Entity:      "Branch",
		ID:          b.ID,
		Tenant:      b.TenantID,
		ActiveField: "is_active",
	}
}
