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

// LeadHandlers handles lead CRUD and call summary requests
type LeadHandlers struct {
	leadSvc services.LeadService
}

func NewLeadHandlers(leadSvc services.LeadService) *LeadHandlers {
	return &LeadHandlers{leadSvc: leadSvc}
}

// CreateLead creates a lead in the active tenant
func (h *LeadHandlers) CreateLead(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.LeadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	lead, err := h.leadSvc.Create(ctx, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, lead)
}

// GetLead returns one lead by id
func (h *LeadHandlers) GetLead(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	lead, err := h.leadSvc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Lead")
		}
		return common.SendServerError(c, "Failed to load lead")
	}
	return c.JSON(http.StatusOK, lead)
}

// UpdateLead replaces a lead's editable fields
func (h *LeadHandlers) UpdateLead(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req services.LeadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	lead, err := h.leadSvc.Update(ctx, id, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Lead")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, lead)
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateLeadStatus moves a lead through its pipeline
func (h *LeadHandlers) UpdateLeadStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req UpdateLeadStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Status is required")
	}

	lead, err := h.leadSvc.UpdateStatus(ctx, id, req.Status, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Lead")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, lead)
}

// DeleteLead soft-deletes a lead
func (h *LeadHandlers) DeleteLead(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.leadSvc.Delete(ctx, id, common.ActorFromContext(ctx)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Lead")
		}
		return common.SendServerError(c, "Failed to delete lead")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListLeads pages through active leads, optionally filtered by status or
// by the customer they belong to
func (h *LeadHandlers) ListLeads(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := common.Pagination(c)

	if raw := c.QueryParam("customer_id"); raw != "" {
		customerID, err := common.ValidateUUID(raw, "customer_id")
		if err != nil {
			return common.SendValidationError(c, "customer_id", err.Error())
		}
		leads, err := h.leadSvc.ListByCustomer(ctx, customerID)
		if err != nil {
			return common.SendServerError(c, "Failed to list leads")
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"leads": leads})
	}

	leads, err := h.leadSvc.List(ctx, c.QueryParam("status"), limit, offset)
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendClientError(c, err.Error())
	}

	total, err := h.leadSvc.Count(ctx)
	if err != nil {
		return common.SendServerError(c, "Failed to count leads")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"leads":  leads,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// AddCallSummary appends a call summary to a lead
func (h *LeadHandlers) AddCallSummary(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req services.CallSummaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	summary, err := h.leadSvc.AddCallSummary(ctx, id, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Lead")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, summary)
}

// ListCallSummaries returns a lead's call summaries, newest first
func (h *LeadHandlers) ListCallSummaries(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	limit, offset := common.Pagination(c)

	summaries, err := h.leadSvc.ListCallSummaries(c.Request().Context(), id, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list call summaries")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"call_summaries": summaries,
		"limit":          limit,
		"offset":         offset,
	})
}
