package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"crmsaas/internal/caching"
	"crmsaas/internal/models"
	"crmsaas/internal/provisioner"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTenantRepo struct {
	tenants  map[uuid.UUID]*models.Tenant
	byName   map[string]*models.Tenant
	created  []*models.Tenant
	lookups  int
	getError error
}

func newStubTenantRepo() *stubTenantRepo {
	return &stubTenantRepo{
		tenants: map[uuid.UUID]*models.Tenant{},
		byName:  map[string]*models.Tenant{},
	}
}

func (s *stubTenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	s.created = append(s.created, tenant)
	s.tenants[tenant.ID] = tenant
	s.byName[tenant.Name] = tenant
	return nil
}

func (s *stubTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	return nil, errors.New("no rows")
}

func (s *stubTenantRepo) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	s.lookups++
	if s.getError != nil {
		return nil, s.getError
	}
	if t, ok := s.byName[name]; ok {
		return t, nil
	}
	return nil, errors.New("no rows")
}

func (s *stubTenantRepo) Update(ctx context.Context, tenant *models.Tenant) error { return nil }

func (s *stubTenantRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	if t, ok := s.tenants[id]; ok {
		t.IsActive = false
	}
	return nil
}

func (s *stubTenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	var out []*models.Tenant
	for _, t := range s.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (s *stubTenantRepo) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	var out []*models.Tenant
	for _, t := range s.tenants {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

type stubProvisioning struct {
	createdDatabases []string
	ensured          []string
	createErr        error
	ensureErr        error
}

func (s *stubProvisioning) CreateDatabase(ctx context.Context, dbName string) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdDatabases = append(s.createdDatabases, dbName)
	return nil
}

func (s *stubProvisioning) EnsureSchema(ctx context.Context, dbName string) (*provisioner.Result, error) {
	s.ensured = append(s.ensured, dbName)
	if s.ensureErr != nil {
		return &provisioner.Result{Database: dbName}, s.ensureErr
	}
	return &provisioner.Result{Database: dbName, Success: true}, nil
}

// memoryCache is an in-process stand-in for the redis-backed cache.
type memoryCache struct {
	tenants map[string]*models.Tenant
}

func newMemoryCache() *memoryCache {
	return &memoryCache{tenants: map[string]*models.Tenant{}}
}

func (c *memoryCache) GetTenant(ctx context.Context, name string) (*models.Tenant, error) {
	return c.tenants[name], nil
}

func (c *memoryCache) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	c.tenants[tenant.Name] = tenant
	return nil
}

func (c *memoryCache) DeleteTenant(ctx context.Context, name string) error {
	delete(c.tenants, name)
	return nil
}

func (c *memoryCache) SetOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	return nil
}

func (c *memoryCache) GetOTP(ctx context.Context, email string) (string, error) {
	return "", caching.ErrCacheMiss
}

func (c *memoryCache) DeleteOTP(ctx context.Context, email string) error { return nil }

func (c *memoryCache) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 1, nil
}

func (c *memoryCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

func (c *memoryCache) GetString(ctx context.Context, key string) (string, error) {
	return "", caching.ErrCacheMiss
}

func (c *memoryCache) Delete(ctx context.Context, key string) error { return nil }

func newTenantServiceFixture() (TenantService, *stubTenantRepo, *stubProvisioning, *memoryCache) {
	repo := newStubTenantRepo()
	prov := &stubProvisioning{}
	cache := newMemoryCache()
	svc := NewTenantService(repo, prov, cache, "crm_tenant_", zap.NewNop())
	return svc, repo, prov, cache
}

func TestRegister_DerivesDatabaseNameOnce(t *testing.T) {
	svc, repo, prov, _ := newTenantServiceFixture()

	tenant, result, err := svc.Register(context.Background(), &RegisterTenantRequest{Name: "  Acme Corp!  "})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp!", tenant.Name)
	assert.Equal(t, "crm_tenant_acme_corp_", tenant.DatabaseName)
	assert.True(t, tenant.IsActive)
	assert.True(t, result.Success)

	require.Len(t, repo.created, 1)
	assert.Equal(t, []string{tenant.DatabaseName}, prov.createdDatabases)
	assert.Equal(t, []string{tenant.DatabaseName}, prov.ensured)
}

func TestRegister_EmptyNameRejected(t *testing.T) {
	svc, repo, _, _ := newTenantServiceFixture()

	_, _, err := svc.Register(context.Background(), &RegisterTenantRequest{Name: "   "})
	assert.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestRegister_ProvisioningFailureStillReturnsTenant(t *testing.T) {
	svc, repo, prov, _ := newTenantServiceFixture()
	prov.ensureErr = errors.New("connection refused")

	tenant, result, err := svc.Register(context.Background(), &RegisterTenantRequest{Name: "acme"})
	assert.Error(t, err)
	require.NotNil(t, tenant)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	require.Len(t, repo.created, 1)
}

func TestGetByName_CachesLookups(t *testing.T) {
	svc, repo, _, cache := newTenantServiceFixture()
	tenant := &models.Tenant{ID: uuid.New(), Name: "acme", DatabaseName: "crm_tenant_acme", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), tenant))

	got, err := svc.GetByName(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)
	assert.Equal(t, 1, repo.lookups)
	assert.NotNil(t, cache.tenants["acme"])

	_, err = svc.GetByName(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lookups, "second lookup must hit the cache")
}

func TestDeactivate_InvalidatesCache(t *testing.T) {
	svc, repo, _, cache := newTenantServiceFixture()
	tenant := &models.Tenant{ID: uuid.New(), Name: "acme", DatabaseName: "crm_tenant_acme", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), tenant))
	cache.tenants["acme"] = tenant

	require.NoError(t, svc.Deactivate(context.Background(), tenant.ID))
	assert.False(t, tenant.IsActive)
	assert.Nil(t, cache.tenants["acme"])
}

func TestProvisionAll_SweepsEveryActiveTenantDespiteFailures(t *testing.T) {
	svc, repo, prov, _ := newTenantServiceFixture()
	for _, name := range []string{"acme", "globex", "initech"} {
		require.NoError(t, repo.Create(context.Background(), &models.Tenant{
			ID: uuid.New(), Name: name, DatabaseName: "crm_tenant_" + name, IsActive: true,
		}))
	}
	require.NoError(t, repo.Create(context.Background(), &models.Tenant{
		ID: uuid.New(), Name: "defunct", DatabaseName: "crm_tenant_defunct", IsActive: false,
	}))
	prov.ensureErr = errors.New("connection refused")

	results, err := svc.ProvisionAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 3, "inactive tenants are skipped")
	assert.Len(t, prov.ensured, 3, "one failure must not stop the sweep")
}

func TestSanitizeDatabaseName(t *testing.T) {
	cases := map[string]string{
		"Acme":          "acme",
		"Acme Corp":     "acme_corp",
		"weird--name!?": "weird__name__",
		"léad":          "l_ad",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeDatabaseName(in), in)
	}
}
