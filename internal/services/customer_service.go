package services

import (
	"context"
	"errors"

	"crmsaas/internal/audit"
	"crmsaas/internal/models"
	"crmsaas/internal/repositories"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
)

type CustomerService interface {
	Create(ctx context.Context, req *CustomerRequest, actor *uuid.UUID) (*models.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Update(ctx context.Context, id uuid.UUID, req *CustomerRequest, actor *uuid.UUID) (*models.Customer, error)
	Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Customer, error)
	Search(ctx context.Context, term string, limit, offset int) ([]*models.Customer, error)
	Count(ctx context.Context) (int, error)
}

type customerService struct {
	customerRepo repositories.CustomerRepository
	recorder     *audit.Recorder
}

func NewCustomerService(customerRepo repositories.CustomerRepository, recorder *audit.Recorder) CustomerService {
	return &customerService{customerRepo: customerRepo, recorder: recorder}
}

type CustomerRequest struct {
	Name    string  `json:"name" validate:"required"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Country *string `json:"country"`
	ZipCode *string `json:"zip_code"`
}

func (s *customerService) Create(ctx context.Context, req *CustomerRequest, actor *uuid.UUID) (*models.Customer, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	tenant, ok := tenancy.CurrentTenant(ctx)
	if !ok {
		return nil, tenancy.ErrNoTenant
	}

	customer := &models.Customer{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Address:   req.Address,
		City:      req.City,
		State:     req.State,
		Country:   req.Country,
		ZipCode:   req.ZipCode,
		IsActive:  true,
		CreatedBy: actor,
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}

	s.recorder.RecordCreate(ctx, customer.AuditSubject(), recordActor(actor, customer.CreatedBy))
	return customer, nil
}

func (s *customerService) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return s.customerRepo.GetByID(ctx, id)
}

func (s *customerService) Update(ctx context.Context, id uuid.UUID, req *CustomerRequest, actor *uuid.UUID) (*models.Customer, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}

	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := customer.AuditSnapshot()

	customer.Name = req.Name
	customer.Email = req.Email
	customer.Phone = req.Phone
	customer.Company = req.Company
	customer.Address = req.Address
	customer.City = req.City
	customer.State = req.State
	customer.Country = req.Country
	customer.ZipCode = req.ZipCode

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, err
	}

	s.recorder.RecordSave(ctx, customer.AuditSubject(), before, customer.AuditSnapshot(), models.CustomerTrackedFields, actor)
	return customer, nil
}

// Delete soft-deletes: the row stays, history records the transition.
func (s *customerService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	before := customer.AuditSnapshot()

	customer.IsActive = false
	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return err
	}

	s.recorder.RecordSave(ctx, customer.AuditSubject(), before, customer.AuditSnapshot(), models.CustomerTrackedFields, actor)
	return nil
}

func (s *customerService) List(ctx context.Context, limit, offset int) ([]*models.Customer, error) {
	return s.customerRepo.List(ctx, limit, offset)
}

func (s *customerService) Search(ctx context.Context, term string, limit, offset int) ([]*models.Customer, error) {
	return s.customerRepo.Search(ctx, term, limit, offset)
}

func (s *customerService) Count(ctx context.Context) (int, error) {
	return s.customerRepo.Count(ctx)
}

// recordActor prefers the authenticated actor, falling back to the entity's
// creator on creation paths where middleware supplied none.
func recordActor(actor, createdBy *uuid.UUID) *uuid.UUID {
	if actor != nil {
		return actor
	}
	return createdBy
}
