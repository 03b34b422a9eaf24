package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"crmsaas/internal/caching"
	"crmsaas/internal/models"
	"crmsaas/internal/provisioner"
	"crmsaas/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tenantCacheTTL = 5 * time.Minute

type TenantService interface {
	Register(ctx context.Context, req *RegisterTenantRequest) (*models.Tenant, *provisioner.Result, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByName(ctx context.Context, name string) (*models.Tenant, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Provision(ctx context.Context, id uuid.UUID) (*provisioner.Result, error)
	ProvisionAll(ctx context.Context) ([]*provisioner.Result, error)
}

// Provisioning is the slice of the schema provisioner the tenant service
// drives.
type Provisioning interface {
	CreateDatabase(ctx context.Context, dbName string) error
	EnsureSchema(ctx context.Context, dbName string) (*provisioner.Result, error)
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
	prov       Provisioning
	cache      caching.CacheService
	dbPrefix   string
	log        *zap.Logger
}

func NewTenantService(tenantRepo repositories.TenantRepository, prov Provisioning, cache caching.CacheService, dbPrefix string, log *zap.Logger) TenantService {
	return &tenantService{
		tenantRepo: tenantRepo,
		prov:       prov,
		cache:      cache,
		dbPrefix:   dbPrefix,
		log:        log,
	}
}

type RegisterTenantRequest struct {
	Name string `json:"name" validate:"required"`
}

// Register creates the tenant record, its physical database and its schema.
// The database name is derived from the tenant name exactly once, here;
// renaming the tenant later never renames the database.
func (s *tenantService) Register(ctx context.Context, req *RegisterTenantRequest) (*models.Tenant, *provisioner.Result, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, errors.New("tenant name is required")
	}

	tenant := &models.Tenant{
		ID:           uuid.New(),
		Name:         name,
		DatabaseName: s.dbPrefix + sanitizeDatabaseName(name),
		IsActive:     true,
	}

	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, nil, err
	}

	if err := s.prov.CreateDatabase(ctx, tenant.DatabaseName); err != nil {
		return tenant, nil, err
	}

	result, err := s.prov.EnsureSchema(ctx, tenant.DatabaseName)
	if err != nil {
		return tenant, result, err
	}

	s.log.Info("tenant registered",
		zap.String("tenant", tenant.Name),
		zap.String("database", tenant.DatabaseName),
		zap.Bool("provisioned", result.Success))
	return tenant, result, nil
}

func (s *tenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

// GetByName serves resolution lookups: cache first, control database on miss.
func (s *tenantService) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	if cached, err := s.cache.GetTenant(ctx, name); err == nil && cached != nil {
		return cached, nil
	}

	tenant, err := s.tenantRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetTenant(ctx, tenant, tenantCacheTTL); err != nil {
		s.log.Warn("failed to cache tenant", zap.String("tenant", name), zap.Error(err))
	}
	return tenant, nil
}

func (s *tenantService) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.tenantRepo.List(ctx, limit, offset)
}

func (s *tenantService) Deactivate(ctx context.Context, id uuid.UUID) error {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tenantRepo.Deactivate(ctx, id); err != nil {
		return err
	}
	if err := s.cache.DeleteTenant(ctx, tenant.Name); err != nil {
		s.log.Warn("failed to invalidate tenant cache", zap.String("tenant", tenant.Name), zap.Error(err))
	}
	return nil
}

func (s *tenantService) Provision(ctx context.Context, id uuid.UUID) (*provisioner.Result, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.prov.EnsureSchema(ctx, tenant.DatabaseName)
}

// ProvisionAll sweeps every active tenant. One failing tenant never stops
// the sweep; its error lands in the result's statement errors or the log.
func (s *tenantService) ProvisionAll(ctx context.Context) ([]*provisioner.Result, error) {
	tenants, err := s.tenantRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*provisioner.Result, 0, len(tenants))
	for _, tenant := range tenants {
		result, err := s.prov.EnsureSchema(ctx, tenant.DatabaseName)
		if err != nil {
			s.log.Error("provisioning sweep failed for tenant",
				zap.String("tenant", tenant.Name),
				zap.String("database", tenant.DatabaseName),
				zap.Error(err))
			if result == nil {
				result = &provisioner.Result{Database: tenant.DatabaseName}
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// sanitizeDatabaseName lowers the tenant name into a safe identifier.
func sanitizeDatabaseName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
