package models

import (
	"time"

	"github.com/google/uuid"

	"crmsaas/internal/audit"
)

// Lead statuses.
const (
	LeadStatusNew           = "new"
	LeadStatusContacted     = "contacted"
	LeadStatusOpen          = "open"
	LeadStatusInterested    = "interested"
	LeadStatusNotInterested = "not_interested"
	LeadStatusFollowUp      = "follow_up"
)

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusOpen,
		LeadStatusInterested, LeadStatusNotInterested, LeadStatusFollowUp:
		return true
	}
	return false
}

// Lead is tenant-local. CustomerID references a customer row in the same
// tenant database, never one brokered across databases.
type Lead struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	TenantID   uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	CustomerID *uuid.UUID `json:"customer_id" db:"customer_id"`
	Name       string     `json:"name" db:"name"`
	Email      *string    `json:"email" db:"email"`
	Phone      *string    `json:"phone" db:"phone"`
	Status     string     `json:"status" db:"status"`
	Source     *string    `json:"source" db:"source"`
	Notes      *string    `json:"notes" db:"notes"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedBy  *uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

var LeadTrackedFields = []string{
	"name", "email", "phone", "status", "source", "notes", "customer", "is_active",
}

func (l *Lead) AuditSnapshot() map[string]audit.FieldValue {
	return map[string]audit.FieldValue{
		"name":      audit.StringField(l.Name),
		"email":     audit.NullStringField(l.Email),
		"phone":     audit.NullStringField(l.Phone),
		"status":    audit.StringField(l.Status),
		"source":    audit.NullStringField(l.Source),
		"notes":     audit.NullStringField(l.Notes),
		"customer":  audit.RefField(l.CustomerID),
		"is_active": audit.BoolField(l.IsActive),
	}
}

func (l *Lead) AuditSubject() audit.Subject {
	return audit.Subject{
		Table:       "lead_history",
		Entity:      "Lead",
		ID:          l.ID,
		Tenant:      l.TenantID,
		StatusField: "status",
		ActiveField: "is_active",
	}
}

// Call outcomes recorded on lead call summaries.
const (
	CallOutcomeScheduledMeeting = "scheduled_meeting"
	CallOutcomeSentInfo         = "sent_info"
	CallOutcomeEndedCall        = "ended_call"
	CallOutcomeFollowUp         = "follow_up"
	CallOutcomeNotContacted     = "not_contacted"
)

// LeadCallSummary is tenant-local, appended by tenant staff after a call.
type LeadCallSummary struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	LeadID    uuid.UUID  `json:"lead_id" db:"lead_id"`
	Summary   *string    `json:"summary" db:"summary"`
	CallTime  *time.Time `json:"call_time" db:"call_time"`
	Outcome   *string    `json:"call_outcome" db:"call_outcome"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedBy *uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
