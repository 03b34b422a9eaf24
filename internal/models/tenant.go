package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant lives only in the control database and is never hard-deleted.
// DatabaseName is derived once at registration and stored verbatim;
// renaming a tenant never renames its database.
type Tenant struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	DatabaseName string    `json:"database_name" db:"database_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
