package models

import (
	"time"

	"github.com/google/uuid"
)

// User is dual-presence: platform admins live only in the control database,
// tenant staff live in their tenant's database (with a row mirrored to the
// control database for central lookups of the admin class only).
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TenantID     *uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	// IsPlatformAdmin marks the centrally stored administrator class; such
	// accounts always resolve to the control database regardless of any
	// tenant association they carry.
	IsPlatformAdmin bool      `json:"is_platform_admin" db:"is_platform_admin"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// AuthToken is dual-presence so both platform admins and tenant staff can
// authenticate against their own store.
type AuthToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
