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

// CategoryHandlers handles category CRUD requests
type CategoryHandlers struct {
	categorySvc services.CategoryService
}

func NewCategoryHandlers(categorySvc services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categorySvc: categorySvc}
}

// CreateCategory creates a category in the active tenant
func (h *CategoryHandlers) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	category, err := h.categorySvc.Create(ctx, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, category)
}

// GetCategory returns one category by id
func (h *CategoryHandlers) GetCategory(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	category, err := h.categorySvc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Category")
		}
		return common.SendServerError(c, "Failed to load category")
	}
	return c.JSON(http.StatusOK, category)
}

// UpdateCategory replaces a category's editable fields
func (h *CategoryHandlers) UpdateCategory(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req services.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	category, err := h.categorySvc.Update(ctx, id, &req, common.ActorFromContext(ctx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Category")
		}
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory soft-deletes a category
func (h *CategoryHandlers) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.categorySvc.Delete(ctx, id, common.ActorFromContext(ctx)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Category")
		}
		return common.SendServerError(c, "Failed to delete category")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCategories pages through active categories, or lists one parent's
// children when parent_id is given
func (h *CategoryHandlers) ListCategories(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := common.Pagination(c)

	if raw := c.QueryParam("parent_id"); raw != "" {
		parentID, err := common.ValidateUUID(raw, "parent_id")
		if err != nil {
			return common.SendValidationError(c, "parent_id", err.Error())
		}
		children, err := h.categorySvc.ListChildren(ctx, parentID)
		if err != nil {
			return common.SendServerError(c, "Failed to list categories")
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"categories": children})
	}

	categories, err := h.categorySvc.List(ctx, limit, offset)
	if err != nil {
		if errors.Is(err, tenancy.ErrNoTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "No tenant resolved for this request")
		}
		return common.SendServerError(c, "Failed to list categories")
	}

	total, err := h.categorySvc.Count(ctx)
	if err != nil {
		return common.SendServerError(c, "Failed to count categories")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}
