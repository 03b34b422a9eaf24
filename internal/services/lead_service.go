package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crmsaas/internal/audit"
	"crmsaas/internal/models"
	"crmsaas/internal/repositories"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
)

type LeadService interface {
	Create(ctx context.Context, req *LeadRequest, actor *uuid.UUID) (*models.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	Update(ctx context.Context, id uuid.UUID, req *LeadRequest, actor *uuid.UUID) (*models.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, actor *uuid.UUID) (*models.Lead, error)
	Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error
	List(ctx context.Context, status string, limit, offset int) ([]*models.Lead, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Lead, error)
	Count(ctx context.Context) (int, error)

	AddCallSummary(ctx context.Context, leadID uuid.UUID, req *CallSummaryRequest, actor *uuid.UUID) (*models.LeadCallSummary, error)
	ListCallSummaries(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]*models.LeadCallSummary, error)
}

type leadService struct {
	leadRepo     repositories.LeadRepository
	customerRepo repositories.CustomerRepository
	recorder     *audit.Recorder
}

func NewLeadService(leadRepo repositories.LeadRepository, customerRepo repositories.CustomerRepository, recorder *audit.Recorder) LeadService {
	return &leadService{leadRepo: leadRepo, customerRepo: customerRepo, recorder: recorder}
}

type LeadRequest struct {
	CustomerID *uuid.UUID `json:"customer_id"`
	Name       string     `json:"name" validate:"required"`
	Email      *string    `json:"email"`
	Phone      *string    `json:"phone"`
	Status     string     `json:"status"`
	Source     *string    `json:"source"`
	Notes      *string    `json:"notes"`
}

type CallSummaryRequest struct {
	Summary  *string    `json:"summary"`
	CallTime *time.Time `json:"call_time"`
	Outcome  *string    `json:"call_outcome"`
}

func (s *leadService) Create(ctx context.Context, req *LeadRequest, actor *uuid.UUID) (*models.Lead, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	tenant, ok := tenancy.CurrentTenant(ctx)
	if !ok {
		return nil, tenancy.ErrNoTenant
	}

	status := req.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	if !models.ValidLeadStatus(status) {
		return nil, fmt.Errorf("invalid lead status %q", status)
	}

	// The referenced customer must exist in the same tenant database;
	// co-location is a provisioning guarantee, this is just existence.
	if req.CustomerID != nil {
		if _, err := s.customerRepo.GetByID(ctx, *req.CustomerID); err != nil {
			return nil, fmt.Errorf("customer %s not found", req.CustomerID)
		}
	}

	lead := &models.Lead{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		CustomerID: req.CustomerID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Status:     status,
		Source:     req.Source,
		Notes:      req.Notes,
		IsActive:   true,
		CreatedBy:  actor,
	}

	if err := s.leadRepo.Create(ctx, lead); err != nil {
		return nil, err
	}

	s.recorder.RecordCreate(ctx, lead.AuditSubject(), recordActor(actor, lead.CreatedBy))
	return lead, nil
}

func (s *leadService) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	return s.leadRepo.GetByID(ctx, id)
}

func (s *leadService) Update(ctx context.Context, id uuid.UUID, req *LeadRequest, actor *uuid.UUID) (*models.Lead, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}

	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := lead.AuditSnapshot()

	status := req.Status
	if status == "" {
		status = lead.Status
	}
	if !models.ValidLeadStatus(status) {
		return nil, fmt.Errorf("invalid lead status %q", status)
	}
	if req.CustomerID != nil && (lead.CustomerID == nil || *req.CustomerID != *lead.CustomerID) {
		if _, err := s.customerRepo.GetByID(ctx, *req.CustomerID); err != nil {
			return nil, fmt.Errorf("customer %s not found", req.CustomerID)
		}
	}

	lead.CustomerID = req.CustomerID
	lead.Name = req.Name
	lead.Email = req.Email
	lead.Phone = req.Phone
	lead.Status = status
	lead.Source = req.Source
	lead.Notes = req.Notes

	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, err
	}

	s.recorder.RecordSave(ctx, lead.AuditSubject(), before, lead.AuditSnapshot(), models.LeadTrackedFields, actor)
	return lead, nil
}

func (s *leadService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, actor *uuid.UUID) (*models.Lead, error) {
	if !models.ValidLeadStatus(status) {
		return nil, fmt.Errorf("invalid lead status %q", status)
	}

	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := lead.AuditSnapshot()

	lead.Status = status
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, err
	}

	s.recorder.RecordSave(ctx, lead.AuditSubject(), before, lead.AuditSnapshot(), models.LeadTrackedFields, actor)
	return lead, nil
}

func (s *leadService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	before := lead.AuditSnapshot()

	lead.IsActive = false
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return err
	}

	s.recorder.RecordSave(ctx, lead.AuditSubject(), before, lead.AuditSnapshot(), models.LeadTrackedFields, actor)
	return nil
}

func (s *leadService) List(ctx context.Context, status string, limit, offset int) ([]*models.Lead, error) {
	if status != "" {
		if !models.ValidLeadStatus(status) {
			return nil, fmt.Errorf("invalid lead status %q", status)
		}
		return s.leadRepo.ListByStatus(ctx, status, limit, offset)
	}
	return s.leadRepo.List(ctx, limit, offset)
}

func (s *leadService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Lead, error) {
	return s.leadRepo.ListByCustomer(ctx, customerID)
}

func (s *leadService) Count(ctx context.Context) (int, error) {
	return s.leadRepo.Count(ctx)
}

func (s *leadService) AddCallSummary(ctx context.Context, leadID uuid.UUID, req *CallSummaryRequest, actor *uuid.UUID) (*models.LeadCallSummary, error) {
	lead, err := s.leadRepo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if req.Outcome != nil && !validCallOutcome(*req.Outcome) {
		return nil, fmt.Errorf("invalid call outcome %q", *req.Outcome)
	}

	summary := &models.LeadCallSummary{
		ID:        uuid.New(),
		TenantID:  lead.TenantID,
		LeadID:    lead.ID,
		Summary:   req.Summary,
		CallTime:  req.CallTime,
		Outcome:   req.Outcome,
		IsActive:  true,
		CreatedBy: actor,
	}
	if err := s.leadRepo.CreateCallSummary(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *leadService) ListCallSummaries(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]*models.LeadCallSummary, error) {
	return s.leadRepo.ListCallSummaries(ctx, leadID, limit, offset)
}

func validCallOutcome(outcome string) bool {
	switch outcome {
	case models.CallOutcomeScheduledMeeting, models.CallOutcomeSentInfo,
		models.CallOutcomeEndedCall, models.CallOutcomeFollowUp, models.CallOutcomeNotContacted:
		return true
	}
	return false
}
