package models

import (
	"time"

	"github.com/google/uuid"

	"crmsaas/internal/audit"
)

// Customer is tenant-local.
type Customer struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Name      string     `json:"name" db:"name"`
	Email     *string    `json:"email" db:"email"`
	Phone     *string    `json:"phone" db:"phone"`
	Company   *string    `json:"company" db:"company"`
	Address   *string    `json:"address" db:"address"`
	City      *string    `json:"city" db:"city"`
	State     *string    `json:"state" db:"state"`
	Country   *string    `json:"country" db:"country"`
	ZipCode   *string    `json:"zip_code" db:"zip_code"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedBy *uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// CustomerTrackedFields are the fields history capture diffs on every save.
var CustomerTrackedFields = []string{
	"name", "email", "phone", "company", "address",
	"city", "state", "country", "zip_code", "is_active",
}

func (c *Customer) AuditSnapshot() map[string]audit.FieldValue {
	return map[string]audit.FieldValue{
		"name":      audit.StringField(c.Name),
		"email":     audit.NullStringField(c.Email),
		"phone":     audit.NullStringField(c.Phone),
		"company":   audit.NullStringField(c.Company),
		"address":   audit.NullStringField(c.Address),
		"city":      audit.NullStringField(c.City),
		"state":     audit.NullStringField(c.State),
		"country":   audit.NullStringField(c.Country),
		"zip_code":  audit.NullStringField(c.ZipCode),
		"is_active": audit.BoolField(c.IsActive),
	}
}

func (c *Customer) AuditSubject() audit.Subject {
	return audit.Subject{
		Table:       "customer_history",
		Entity:      "Customer",
		ID:          c.ID,
		Tenant:      c.TenantID,
		ActiveField: "is_active",
	}
}
