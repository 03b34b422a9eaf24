package models

import (
	"time"

	"github.com/google/uuid"

	"crmsaas/internal/audit"
)

// Category is tenant-local with an optional same-database parent.
type Category struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TenantID    uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Name        string     `json:"name" db:"name"`
	Code        *string    `json:"code" db:"code"`
	Description *string    `json:"description" db:"description"`
	ParentID    *uuid.UUID `json:"parent_id" db:"parent_id"`
	Notes       *string    `json:"notes" db:"notes"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedBy   *uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

var CategoryTrackedFields = []string{
	"name", "code", "description", "parent", "notes", "is_active",
}

func (c *Category) AuditSnapshot() map[string]audit.FieldValue {
	return map[string]audit.FieldValue{
		"name":        audit.StringField(c.Name),
		"code":        audit.NullStringField(c.Code),
		"description": audit.NullStringField(c.Description),
		"parent":      audit.RefField(c.ParentID),
		"notes":       audit.NullStringField(c.Notes),
		"is_active":   audit.BoolField(c.IsActive),
	}
}

func (c *Category) AuditSubject() audit.Subject {
	return audit.Subject{
		Table:       "category_history",
		Entity:      "Category",
		ID:          c.ID,
		Tenant:      c.TenantID,
		ActiveField: "is_active",
	}
}
