package middleware

import (
	"net/http"
	"strings"

	"crmsaas/internal/repositories"
	"crmsaas/internal/services"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantResolver binds each request to an execution context. Resolution
// order: platform admins always get the control database, then an explicit
// tenant named by header or subdomain, then the tenant carried by the
// authenticated principal. Naming an unknown or inactive tenant fails the
// request; it never falls through to another database. Every request starts
// from a cleared context, so nothing leaks between requests on the same
// connection.
type TenantResolver struct {
	tenants  services.TenantService
	userRepo repositories.UserRepository
	log      *zap.Logger
}

func NewTenantResolver(tenants services.TenantService, userRepo repositories.UserRepository, log *zap.Logger) *TenantResolver {
	return &TenantResolver{tenants: tenants, userRepo: userRepo, log: log}
}

func (tr *TenantResolver) Resolve() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := tenancy.WithoutTenant(c.Request().Context())
			c.SetRequest(c.Request().WithContext(ctx))

			claims, hasClaims := TokenClaims(c)

			// Platform admins are served from the control database no
			// matter which tenant the request names.
			if hasClaims && claims.TenantID == "" {
				if userID, err := uuid.Parse(claims.UserID); err == nil {
					user, err := tr.userRepo.GetByID(ctx, userID)
					if err == nil && user.IsPlatformAdmin {
						return next(c)
					}
				}
			}

			if name := requestedTenant(c); name != "" {
				tenant, err := tr.tenants.GetByName(ctx, name)
				if err != nil {
					tr.log.Info("request named unknown tenant",
						zap.String("tenant", name),
						zap.String("path", c.Path()))
					return echo.NewHTTPError(http.StatusNotFound, "unknown tenant")
				}
				c.SetRequest(c.Request().WithContext(tenancy.WithTenant(ctx, tenant)))
				return next(c)
			}

			if hasClaims && claims.TenantID != "" {
				tenantID, err := uuid.Parse(claims.TenantID)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid tenant id in token")
				}
				tenant, err := tr.tenants.GetByID(ctx, tenantID)
				if err != nil || !tenant.IsActive {
					return echo.NewHTTPError(http.StatusForbidden, "tenant is not available")
				}
				c.SetRequest(c.Request().WithContext(tenancy.WithTenant(ctx, tenant)))
				return next(c)
			}

			// No tenant anywhere: the request proceeds control-scoped.
			return next(c)
		}
	}
}

// requestedTenant reads the tenant name from the X-Tenant header, falling
// back to the first subdomain of the Host. The apex host is three labels
// (crm.example.com), so only a fourth label names a tenant.
func requestedTenant(c echo.Context) string {
	if name := c.Request().Header.Get("X-Tenant"); name != "" {
		return strings.TrimSpace(name)
	}

	host := c.Request().Host
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) < 4 {
		return ""
	}
	sub := parts[0]
	switch sub {
	case "www", "api", "app":
		return ""
	}
	return sub
}
