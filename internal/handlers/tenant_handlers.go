package handlers

import (
	"errors"
	"net/http"

	"crmsaas/internal/common"
	"crmsaas/internal/provisioner"
	"crmsaas/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers handles tenant administration. These endpoints are
// platform-admin territory and run control-scoped.
type TenantHandlers struct {
	tenantSvc services.TenantService
}

func NewTenantHandlers(tenantSvc services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantSvc: tenantSvc}
}

// RegisterTenant creates a tenant, its database and its schema
func (h *TenantHandlers) RegisterTenant(c echo.Context) error {
	var req services.RegisterTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	tenant, result, err := h.tenantSvc.Register(c.Request().Context(), &req)
	if err != nil {
		if tenant == nil {
			return common.SendClientError(c, err.Error())
		}
		// The record exists but provisioning failed; report both.
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"tenant":       tenant,
			"provisioning": result,
			"error":        err.Error(),
		})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"tenant":       tenant,
		"provisioning": result,
	})
}

// ListTenants returns the tenant registry page by page
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	limit, offset := common.Pagination(c)
	tenants, err := h.tenantSvc.List(c.Request().Context(), limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list tenants")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetTenant returns one tenant by id
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	tenant, err := h.tenantSvc.GetByID(c.Request().Context(), id)
	if err != nil {
		return common.SendNotFoundError(c, "Tenant")
	}
	return c.JSON(http.StatusOK, tenant)
}

// DeactivateTenant soft-disables a tenant; its database stays untouched
func (h *TenantHandlers) DeactivateTenant(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.tenantSvc.Deactivate(c.Request().Context(), id); err != nil {
		return common.SendServerError(c, "Failed to deactivate tenant")
	}
	return c.NoContent(http.StatusNoContent)
}

// ProvisionTenant re-runs schema provisioning for one tenant
func (h *TenantHandlers) ProvisionTenant(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	result, err := h.tenantSvc.Provision(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, provisioner.ErrDatabaseMissing) {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"result": result,
				"error":  "tenant database does not exist",
			})
		}
		return common.SendServerError(c, "Provisioning failed")
	}
	return c.JSON(http.StatusOK, result)
}
