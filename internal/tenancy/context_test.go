package tenancy

import (
	"context"
	"testing"

	"crmsaas/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCurrentTenant_EmptyContext(t *testing.T) {
	tenant, ok := CurrentTenant(context.Background())
	assert.Nil(t, tenant)
	assert.False(t, ok)
}

func TestWithTenant_RoundTrip(t *testing.T) {
	want := &models.Tenant{ID: uuid.New(), Name: "acme", DatabaseName: "crm_tenant_acme"}
	ctx := WithTenant(context.Background(), want)

	got, ok := CurrentTenant(ctx)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestWithTenant_NilMeansControl(t *testing.T) {
	ctx := WithTenant(context.Background(), nil)
	tenant, ok := CurrentTenant(ctx)
	assert.Nil(t, tenant)
	assert.False(t, ok)
}

func TestWithoutTenant_ClearsResolvedTenant(t *testing.T) {
	ctx := WithTenant(context.Background(), &models.Tenant{ID: uuid.New(), Name: "acme"})
	ctx = WithoutTenant(ctx)

	tenant, ok := CurrentTenant(ctx)
	assert.Nil(t, tenant)
	assert.False(t, ok)
}

func TestWithTenant_DerivedContextDoesNotLeakUp(t *testing.T) {
	parent := context.Background()
	_ = WithTenant(parent, &models.Tenant{ID: uuid.New(), Name: "acme"})

	tenant, ok := CurrentTenant(parent)
	assert.Nil(t, tenant)
	assert.False(t, ok)
}

func TestBootstrap_DefaultsOff(t *testing.T) {
	assert.False(t, BootstrapAllowed(context.Background()))
	assert.True(t, BootstrapAllowed(WithBootstrap(context.Background())))
}
