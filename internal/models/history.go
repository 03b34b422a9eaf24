package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB is a generic JSON document column.
type JSONB map[string]interface{}

// APIHistory is the coarse API-call log. Control-only: it records
// cross-tenant traffic and must stay centrally queryable.
type APIHistory struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	UserID         *uuid.UUID `json:"user_id" db:"user_id"`
	TenantID       *uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Method         string     `json:"method" db:"method"`
	Endpoint       string     `json:"endpoint" db:"endpoint"`
	ResponseStatus int        `json:"response_status" db:"response_status"`
	IPAddress      *string    `json:"ip_address" db:"ip_address"`
	UserAgent      *string    `json:"user_agent" db:"user_agent"`
	ExecutionTime  float64    `json:"execution_time" db:"execution_time"`
	ErrorMessage   *string    `json:"error_message" db:"error_message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// APIHistoryStats summarizes the call log over a window.
type APIHistoryStats struct {
	Since            time.Time `json:"since"`
	TotalCalls       int64     `json:"total_calls"`
	ErrorCalls       int64     `json:"error_calls"`
	AvgExecutionTime float64   `json:"avg_execution_time"`
	MaxExecutionTime float64   `json:"max_execution_time"`
}
