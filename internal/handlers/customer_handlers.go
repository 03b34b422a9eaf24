package handlers

import (
	"errors"
	"net/http"

	"crmsaas/internal/common"
	"crmsaas/internal/services"
	"crmsaas/internal/tenancy"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

// CustomerHandlers handles customer CRUD requests
type CustomerHandlers struct {
	customerSvc services.CustomerService
}

func NewCustomerHandlers(customerSvc services.CustomerService) *CustomerHandlers {
	return &CustomerHandlers{customerSvc: customerSvc}
}

// CreateCustomer creates a customer in the active tenant
func (h *CustomerHandlers) CreateCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.CustomerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	customer, err := h.customerSvc.Create(ctx, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, customer)
}

// GetCustomer returns one customer by id
func (h *CustomerHandlers) GetCustomer(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	customer, err := h.customerSvc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Customer")
		}
		return common.SendServerError(c, "Failed to load customer")
	}
	return c.JSON(http.StatusOK, customer)
}

// UpdateCustomer replaces a customer's editable fields
func (h *CustomerHandlers) UpdateCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req services.CustomerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	customer, err := h.customerSvc.Update(ctx, id, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Customer")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, customer)
}

// DeleteCustomer soft-deletes a customer
func (h *CustomerHandlers) DeleteCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.customerSvc.Delete(ctx, id, common.ActorFromContext(ctx)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Customer")
		}
		return common.SendServerError(c, "Failed to delete customer")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCustomers pages through active customers, optionally filtered by a
// search term
func (h *CustomerHandlers) ListCustomers(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := common.Pagination(c)

	var (
		customers interface{}
		err       error
	)
	if term := c.QueryParam("q"); term != "" {
		customers, err = h.customerSvc.Search(ctx, term, limit, offset)
	} else {
		customers, err = h.customerSvc.List(ctx, limit, offset)
	}
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendServerError(c, "Failed to list customers")
	}

	total, err := h.customerSvc.Count(ctx)
	if err != nil {
		return common.SendServerError(c, "Failed to count customers")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"customers": customers,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}
