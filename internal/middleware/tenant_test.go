package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crmsaas/internal/models"
	"crmsaas/internal/provisioner"
	"crmsaas/internal/services"
	"crmsaas/internal/tenancy"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTenantLookup struct {
	byName map[string]*models.Tenant
	byID   map[uuid.UUID]*models.Tenant
}

func (s *stubTenantLookup) Register(ctx context.Context, req *services.RegisterTenantRequest) (*models.Tenant, *provisioner.Result, error) {
	return nil, nil, errors.New("not implemented")
}

func (s *stubTenantLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := s.byID[id]; ok {
		return t, nil
	}
	return nil, errors.New("no rows")
}

func (s *stubTenantLookup) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	if t, ok := s.byName[name]; ok {
		return t, nil
	}
	return nil, errors.New("no rows")
}

func (s *stubTenantLookup) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	return nil, nil
}

func (s *stubTenantLookup) Deactivate(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubTenantLookup) Provision(ctx context.Context, id uuid.UUID) (*provisioner.Result, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTenantLookup) ProvisionAll(ctx context.Context) ([]*provisioner.Result, error) {
	return nil, nil
}

type stubUserLookup struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserLookup) Create(ctx context.Context, user *models.User) error { return nil }

func (s *stubUserLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("no rows")
}

func (s *stubUserLookup) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, errors.New("no rows")
}

func (s *stubUserLookup) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("no rows")
}

func (s *stubUserLookup) Update(ctx context.Context, user *models.User) error { return nil }

func (s *stubUserLookup) Deactivate(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubUserLookup) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return nil, nil
}

type resolverFixture struct {
	resolver *TenantResolver
	tenants  *stubTenantLookup
	users    *stubUserLookup
}

func newResolverFixture() *resolverFixture {
	tenants := &stubTenantLookup{
		byName: map[string]*models.Tenant{},
		byID:   map[uuid.UUID]*models.Tenant{},
	}
	users := &stubUserLookup{users: map[uuid.UUID]*models.User{}}
	return &resolverFixture{
		resolver: NewTenantResolver(tenants, users, zap.NewNop()),
		tenants:  tenants,
		users:    users,
	}
}

func (f *resolverFixture) addTenant(name string) *models.Tenant {
	tenant := &models.Tenant{
		ID:           uuid.New(),
		Name:         name,
		DatabaseName: "crm_tenant_" + name,
		IsActive:     true,
	}
	f.tenants.byName[name] = tenant
	f.tenants.byID[tenant.ID] = tenant
	return tenant
}

// run sends one request through the resolver and captures the tenant the
// handler observed.
func (f *resolverFixture) run(t *testing.T, configure func(c echo.Context, req *http.Request)) (*models.Tenant, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/customers", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if configure != nil {
		configure(c, req)
	}

	var seen *models.Tenant
	var ok bool
	handler := f.resolver.Resolve()(func(c echo.Context) error {
		seen, ok = tenancy.CurrentTenant(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	return seen, ok, err
}

func setClaims(c echo.Context, claims *services.Claims) {
	c.Set("user", &jwt.Token{Claims: claims})
}

func TestResolve_HeaderNamesTenant(t *testing.T) {
	f := newResolverFixture()
	tenant := f.addTenant("acme")

	seen, ok, err := f.run(t, func(c echo.Context, req *http.Request) {
		req.Header.Set("X-Tenant", "acme")
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tenant.ID, seen.ID)
}

func TestResolve_SubdomainNamesTenant(t *testing.T) {
	f := newResolverFixture()
	tenant := f.addTenant("acme")

	seen, ok, err := f.run(t, func(c echo.Context, req *http.Request) {
		req.Host = "acme.crm.example.com"
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tenant.ID, seen.ID)
}

func TestResolve_UnknownTenantFailsClosed(t *testing.T) {
	f := newResolverFixture()

	_, _, err := f.run(t, func(c echo.Context, req *http.Request) {
		req.Header.Set("X-Tenant", "ghost")
	})
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestResolve_ReservedSubdomainsIgnored(t *testing.T) {
	f := newResolverFixture()

	for _, host := range []string{"www.crm.example.com", "api.crm.example.com", "app.crm.example.com", "crm.example.com", "crm.example.com:8080"} {
		_, ok, err := f.run(t, func(c echo.Context, req *http.Request) {
			req.Host = host
		})
		require.NoError(t, err, host)
		assert.False(t, ok, host)
	}
}

func TestResolve_PrincipalTenantUsedWithoutExplicitName(t *testing.T) {
	f := newResolverFixture()
	tenant := f.addTenant("acme")

	seen, ok, err := f.run(t, func(c echo.Context, req *http.Request) {
		setClaims(c, &services.Claims{UserID: uuid.NewString(), TenantID: tenant.ID.String()})
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tenant.ID, seen.ID)
}

func TestResolve_InactivePrincipalTenantForbidden(t *testing.T) {
	f := newResolverFixture()
	tenant := f.addTenant("acme")
	tenant.IsActive = false

	_, _, err := f.run(t, func(c echo.Context, req *http.Request) {
		setClaims(c, &services.Claims{UserID: uuid.NewString(), TenantID: tenant.ID.String()})
	})
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestResolve_PlatformAdminAlwaysControlScoped(t *testing.T) {
	f := newResolverFixture()
	f.addTenant("acme")

	admin := &models.User{ID: uuid.New(), Username: "root", IsPlatformAdmin: true, IsActive: true}
	f.users.users[admin.ID] = admin

	// Even when the request names a tenant, the admin stays on control.
	seen, ok, err := f.run(t, func(c echo.Context, req *http.Request) {
		setClaims(c, &services.Claims{UserID: admin.ID.String()})
		req.Header.Set("X-Tenant", "acme")
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, seen)
}

func TestResolve_AnonymousWithoutTenantIsControlScoped(t *testing.T) {
	f := newResolverFixture()

	seen, ok, err := f.run(t, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, seen)
}
