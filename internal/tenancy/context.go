package tenancy

import (
	"context"

	"crmsaas/internal/models"
)

type contextKey int

const (
	tenantKey contextKey = iota
	bootstrapKey
)

// WithTenant returns a context with tenant as the active execution context.
// Passing nil records an explicit "no tenant" (control database).
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// WithoutTenant clears any resolved tenant. Platform-admin principals always
// go through here regardless of tenant associations they carry.
func WithoutTenant(ctx context.Context) context.Context {
	return context.WithValue(ctx, tenantKey, (*models.Tenant)(nil))
}

// CurrentTenant returns the active tenant, or false when none is resolved.
func CurrentTenant(ctx context.Context) (*models.Tenant, bool) {
	tenant, ok := ctx.Value(tenantKey).(*models.Tenant)
	if !ok || tenant == nil {
		return nil, false
	}
	return tenant, true
}

// WithBootstrap marks an administrative/bootstrap flow in which tenant-local
// access may fall back to the control database. Ordinary request handling
// never sets this.
func WithBootstrap(ctx context.Context) context.Context {
	return context.WithValue(ctx, bootstrapKey, true)
}

// BootstrapAllowed reports whether the control-database fallback is permitted.
func BootstrapAllowed(ctx context.Context) bool {
	allowed, _ := ctx.Value(bootstrapKey).(bool)
	return allowed
}
