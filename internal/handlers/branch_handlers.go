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

// BranchHandlers handles branch CRUD requests
type BranchHandlers struct {
	branchSvc services.BranchService
}

func NewBranchHandlers(branchSvc services.BranchService) *BranchHandlers {
	return &BranchHandlers{branchSvc: branchSvc}
}

// CreateBranch creates a branch in the active tenant
func (h *BranchHandlers) CreateBranch(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.BranchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	branch, err := h.branchSvc.Create(ctx, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, branch)
}

// GetBranch returns one branch by id
func (h *BranchHandlers) GetBranch(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	branch, err := h.branchSvc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Branch")
		}
		return common.SendServerError(c, "Failed to load branch")
	}
	return c.JSON(http.StatusOK, branch)
}

// UpdateBranch replaces a branch's editable fields
func (h *BranchHandlers) UpdateBranch(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req services.BranchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	branch, err := h.branchSvc.Update(ctx, id, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Branch")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, branch)
}

// DeleteBranch soft-deletes a branch
func (h *BranchHandlers) DeleteBranch(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.branchSvc.Delete(ctx, id, common.ActorFromContext(ctx)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Branch")
		}
		return common.SendServerError(c, "Failed to delete branch")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBranches pages through active branches
func (h *BranchHandlers) ListBranches(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := common.Pagination(c)

	branches, err := h.branchSvc.List(ctx, limit, offset)
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendServerError(c, "Failed to list branches")
	}

	total, err := h.branchSvc.Count(ctx)
	if err != nil {
		return common.SendServerError(c, "Failed to count branches")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"branches": branches,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}
