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

type CategoryService interface {
	Create(ctx context.Context, req *CategoryRequest, actor *uuid.UUID) (*models.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Update(ctx context.Context, id uuid.UUID, req *CategoryRequest, actor *uuid.UUID) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Category, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Category, error)
	Count(ctx context.Context) (int, error)
}

type categoryService struct {
	categoryRepo repositories.CategoryRepository
	recorder     *audit.Recorder
}

func NewCategoryService(categoryRepo repositories.CategoryRepository, recorder *audit.Recorder) CategoryService {
	return &categoryService{categoryRepo: categoryRepo, recorder: recorder}
}

type CategoryRequest struct {
	Name        string     `json:"name" validate:"required"`
	Code        *string    `json:"code"`
	Description *string    `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	Notes       *string    `json:"notes"`
}

func (s *categoryService) Create(ctx context.Context, req *CategoryRequest, actor *uuid.UUID) (*models.Category, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	tenant, ok := tenancy.CurrentTenant(ctx)
	if !ok {
		return nil, tenancy.ErrNoTenant
	}

	if req.ParentID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *req.ParentID); err != nil {
			return nil, errors.New("parent category not found")
		}
	}

	category := &models.Category{
		ID:          uuid.New(),
		TenantID:    tenant.ID,
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		ParentID:    req.ParentID,
		Notes:       req.Notes,
		IsActive:    true,
		CreatedBy:   actor,
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.recorder.RecordCreate(ctx, category.AuditSubject(), recordActor(actor, category.CreatedBy))
	return category, nil
}

func (s *categoryService) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return s.categoryRepo.GetByID(ctx, id)
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, req *CategoryRequest, actor *uuid.UUID) (*models.Category, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	if req.ParentID != nil && *req.ParentID == id {
		return nil, errors.New("category cannot be its own parent")
	}

	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := category.AuditSnapshot()

	if req.ParentID != nil && (category.ParentID == nil || *req.ParentID != *category.ParentID) {
		if _, err := s.categoryRepo.GetByID(ctx, *req.ParentID); err != nil {
			return nil, errors.New("parent category not found")
		}
	}

	category.Name = req.Name
	category.Code = req.Code
	category.Description = req.Description
	category.ParentID = req.ParentID
	category.Notes = req.Notes

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}

	s.recorder.RecordSave(ctx, category.AuditSubject(), before, category.AuditSnapshot(), models.CategoryTrackedFields, actor)
	return category, nil
}

func (s *categoryService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	before := category.AuditSnapshot()

	category.IsActive = false
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return err
	}

	s.recorder.RecordSave(ctx, category.AuditSubject(), before, category.AuditSnapshot(), models.CategoryTrackedFields, actor)
	return nil
}

func (s *categoryService) List(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	return s.categoryRepo.List(ctx, limit, offset)
}

func (s *categoryService) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Category, error) {
	return s.categoryRepo.ListChildren(ctx, parentID)
}

func (s *categoryService) Count(ctx context.Context) (int, error) {
	return s.categoryRepo.Count(ctx)
}
