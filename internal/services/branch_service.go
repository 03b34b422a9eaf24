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

type BranchService interface {
	Create(ctx context.Context, req *BranchRequest, actor *uuid.UUID) (*models.Branch, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Branch, error)
	Update(ctx context.Context, id uuid.UUID, req *BranchRequest, actor *uuid.UUID) (*models.Branch, error)
	Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Branch, error)
	Count(ctx context.Context) (int, error)
}

type branchService struct {
	branchRepo repositories.BranchRepository
	recorder   *audit.Recorder
}

func NewBranchService(branchRepo repositories.BranchRepository, recorder *audit.Recorder) BranchService {
	return &branchService{branchRepo: branchRepo, recorder: recorder}
}

type BranchRequest struct {
	Name         string  `json:"name" validate:"required"`
	Code         *string `json:"code"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	Country      *string `json:"country"`
	ZipCode      *string `json:"zip_code"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	ManagerName  *string `json:"manager_name"`
	ManagerEmail *string `json:"manager_email"`
	ManagerPhone *string `json:"manager_phone"`
	Notes        *string `json:"notes"`
}

func (s *branchService) Create(ctx context.Context, req *BranchRequest, actor *uuid.UUID) (*models.Branch, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	tenant, ok := tenancy.CurrentTenant(ctx)
	if !ok {
		return nil, tenancy.ErrNoTenant
	}

	branch := &models.Branch{
		ID:           uuid.New(),
		TenantID:     tenant.ID,
		Name:         req.Name,
		Code:         req.Code,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Country:      req.Country,
		ZipCode:      req.ZipCode,
		Phone:        req.Phone,
		Email:        req.Email,
		ManagerName:  req.ManagerName,
		ManagerEmail: req.ManagerEmail,
		ManagerPhone: req.ManagerPhone,
		Notes:        req.Notes,
		IsActive:     true,
		CreatedBy:    actor,
	}

	if err := s.branchRepo.Create(ctx, branch); err != nil {
		return nil, err
	}

	s.recorder.RecordCreate(ctx, branch.AuditSubject(), recordActor(actor, branch.CreatedBy))
	return branch, nil
}

func (s *branchService) GetByID(ctx context.Context, id uuid.UUID) (*models.Branch, error) {
	return s.branchRepo.GetByID(ctx, id)
}

func (s *branchService) Update(ctx context.Context, id uuid.UUID, req *BranchRequest, actor *uuid.UUID) (*models.Branch, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}

	branch, err := s.branchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := branch.AuditSnapshot()

	branch.Name = req.Name
	branch.Code = req.Code
	branch.Address = req.Address
	branch.City = req.City
	branch.State = req.State
	branch.Country = req.Country
	branch.ZipCode = req.ZipCode
	branch.Phone = req.Phone
	branch.Email = req.Email
	branch.ManagerName = req.ManagerName
	branch.ManagerEmail = req.ManagerEmail
	branch.ManagerPhone = req.ManagerPhone
	branch.Notes = req.Notes

	if err := s.branchRepo.Update(ctx, branch); err != nil {
		return nil, err
	}

	s.recorder.RecordSave(ctx, branch.AuditSubject(), before, branch.AuditSnapshot(), models.BranchTrackedFields, actor)
	return branch, nil
}

func (s *branchService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	branch, err := s.branchRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	before := branch.AuditSnapshot()

	branch.IsActive = false
	if err := s.branchRepo.Update(ctx, branch); err != nil {
		return err
	}

	s.recorder.RecordSave(ctx, branch.AuditSubject(), before, branch.AuditSnapshot(), models.BranchTrackedFields, actor)
	return nil
}

func (s *branchService) List(ctx context.Context, limit, offset int) ([]*models.Branch, error) {
	return s.branchRepo.List(ctx, limit, offset)
}

func (s *branchService) Count(ctx context.Context) (int, error) {
	return s.branchRepo.Count(ctx)
}
