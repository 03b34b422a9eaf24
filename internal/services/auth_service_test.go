package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"crmsaas/internal/models"
	"crmsaas/internal/tenancy"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// tenantUserRepo keys users by the tenant resolved from the context, so
// login probes against the wrong store miss exactly like they would against
// separate databases.
type tenantUserRepo struct {
	control map[string]*models.User
	tenants map[uuid.UUID]map[string]*models.User
}

func newTenantUserRepo() *tenantUserRepo {
	return &tenantUserRepo{
		control: map[string]*models.User{},
		tenants: map[uuid.UUID]map[string]*models.User{},
	}
}

func (r *tenantUserRepo) store(ctx context.Context) map[string]*models.User {
	if tenant, ok := tenancy.CurrentTenant(ctx); ok {
		if r.tenants[tenant.ID] == nil {
			r.tenants[tenant.ID] = map[string]*models.User{}
		}
		return r.tenants[tenant.ID]
	}
	return r.control
}

func (r *tenantUserRepo) Create(ctx context.Context, user *models.User) error {
	r.store(ctx)[user.Username] = user
	return nil
}

func (r *tenantUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range r.store(ctx) {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("no rows")
}

func (r *tenantUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := r.store(ctx)[username]; ok && u.IsActive {
		return u, nil
	}
	return nil, errors.New("no rows")
}

func (r *tenantUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.store(ctx) {
		if u.Email == email && u.IsActive {
			return u, nil
		}
	}
	return nil, errors.New("no rows")
}

func (r *tenantUserRepo) Update(ctx context.Context, user *models.User) error { return nil }

func (r *tenantUserRepo) Deactivate(ctx context.Context, id uuid.UUID) error { return nil }

func (r *tenantUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return nil, nil
}

type memoryTokenRepo struct {
	tokens map[string]*models.AuthToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: map[string]*models.AuthToken{}}
}

func (r *memoryTokenRepo) Create(ctx context.Context, token *models.AuthToken) error {
	r.tokens[token.TokenHash] = token
	return nil
}

func (r *memoryTokenRepo) GetByHash(ctx context.Context, hash string) (*models.AuthToken, error) {
	if t, ok := r.tokens[hash]; ok {
		return t, nil
	}
	return nil, errors.New("no rows")
}

func (r *memoryTokenRepo) DeleteByHash(ctx context.Context, hash string) error {
	delete(r.tokens, hash)
	return nil
}

func (r *memoryTokenRepo) DeleteForUser(ctx context.Context, userID uuid.UUID) error { return nil }

func (r *memoryTokenRepo) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return 0, nil
}

type recordingMailer struct {
	sent []string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, to)
	return nil
}

type authFixture struct {
	svc     AuthService
	users   *tenantUserRepo
	tokens  *memoryTokenRepo
	tenants *stubTenantRepo
	cache   *memoryCache
	mailer  *recordingMailer
}

func newAuthFixture() *authFixture {
	users := newTenantUserRepo()
	tokens := newMemoryTokenRepo()
	tenants := newStubTenantRepo()
	cache := newMemoryCache()
	mailer := &recordingMailer{}
	svc := NewAuthService(users, tokens, tenants, cache, mailer, "test-secret", zap.NewNop())
	return &authFixture{svc: svc, users: users, tokens: tokens, tenants: tenants, cache: cache, mailer: mailer}
}

func (f *authFixture) addUser(t *testing.T, ctx context.Context, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@x.test",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	require.NoError(t, f.users.Create(ctx, user))
	return user
}

func parseClaims(t *testing.T, token string) *Claims {
	t.Helper()
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	return claims
}

func TestLogin_WithTenantHint(t *testing.T) {
	f := newAuthFixture()
	tenant := &models.Tenant{ID: uuid.New(), Name: "acme", DatabaseName: "crm_tenant_acme", IsActive: true}
	require.NoError(t, f.tenants.Create(context.Background(), tenant))
	user := f.addUser(t, tenancy.WithTenant(context.Background(), tenant), "alice", "s3cret")

	resp, err := f.svc.Login(context.Background(), "alice", "s3cret", "acme")
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, tenant.ID, resp.Tenant.ID)

	claims := parseClaims(t, resp.Token)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, tenant.ID.String(), claims.TenantID)
	assert.Len(t, f.tokens.tokens, 1, "token hash must be persisted")
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture()
	f.addUser(t, context.Background(), "alice", "s3cret")

	_, err := f.svc.Login(context.Background(), "alice", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, f.tokens.tokens)
}

func TestLogin_ProbesTenantsWithoutHint(t *testing.T) {
	f := newAuthFixture()
	tenant := &models.Tenant{ID: uuid.New(), Name: "globex", DatabaseName: "crm_tenant_globex", IsActive: true}
	require.NoError(t, f.tenants.Create(context.Background(), tenant))
	user := f.addUser(t, tenancy.WithTenant(context.Background(), tenant), "bob", "hunter2")

	resp, err := f.svc.Login(context.Background(), "bob", "hunter2", "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
	require.NotNil(t, resp.Tenant)
	assert.Equal(t, tenant.ID, resp.Tenant.ID)
}

func TestLogin_PlatformAdminTokenCarriesNoTenant(t *testing.T) {
	f := newAuthFixture()
	admin := f.addUser(t, context.Background(), "root", "s3cret")
	admin.IsPlatformAdmin = true

	resp, err := f.svc.Login(context.Background(), "root", "s3cret", "")
	require.NoError(t, err)
	assert.Nil(t, resp.Tenant)

	claims := parseClaims(t, resp.Token)
	assert.Empty(t, claims.TenantID)
}

func TestLogin_UnknownTenantHint(t *testing.T) {
	f := newAuthFixture()
	f.addUser(t, context.Background(), "alice", "s3cret")

	_, err := f.svc.Login(context.Background(), "alice", "s3cret", "ghost")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogout_RemovesTokenRecord(t *testing.T) {
	f := newAuthFixture()
	f.addUser(t, context.Background(), "alice", "s3cret")

	resp, err := f.svc.Login(context.Background(), "alice", "s3cret", "")
	require.NoError(t, err)
	require.Len(t, f.tokens.tokens, 1)

	require.NoError(t, f.svc.Logout(context.Background(), resp.Token))
	assert.Empty(t, f.tokens.tokens)
}

func TestRequestOTP_UnknownEmailDoesNotLeak(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.RequestOTP(context.Background(), "nobody@x.test")
	assert.NoError(t, err)
	assert.Empty(t, f.mailer.sent, "no mail for unknown accounts")
}

func TestRequestOTP_SendsCodeToKnownAccount(t *testing.T) {
	f := newAuthFixture()
	f.addUser(t, context.Background(), "alice", "s3cret")

	require.NoError(t, f.svc.RequestOTP(context.Background(), "alice@x.test"))
	assert.Equal(t, []string{"alice@x.test"}, f.mailer.sent)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	f := newAuthFixture()
	f.addUser(t, context.Background(), "alice", "s3cret")

	_, err := f.svc.VerifyOTP(context.Background(), "alice@x.test", "000000")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestRegister_HashesPasswordAndScopesTenant(t *testing.T) {
	f := newAuthFixture()
	tenant := &models.Tenant{ID: uuid.New(), Name: "acme", DatabaseName: "crm_tenant_acme", IsActive: true}
	ctx := tenancy.WithTenant(context.Background(), tenant)

	user, err := f.svc.Register(ctx, &RegisterUserRequest{
		Username: "carol",
		Email:    "Carol@X.Test",
		Password: "s3cret",
	})
	require.NoError(t, err)

	assert.Equal(t, "carol@x.test", user.Email)
	assert.NotEqual(t, "s3cret", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")))
	require.NotNil(t, user.TenantID)
	assert.Equal(t, tenant.ID, *user.TenantID)
}
