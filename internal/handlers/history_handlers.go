package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"crmsaas/internal/common"
	"crmsaas/internal/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

// HistoryHandlers serves the read side of change history. History is
// append-only; these endpoints never mutate.
type HistoryHandlers struct {
	historyRepo repositories.HistoryRepository
	apiRepo     repositories.APIHistoryRepository
}

func NewHistoryHandlers(historyRepo repositories.HistoryRepository, apiRepo repositories.APIHistoryRepository) *HistoryHandlers {
	return &HistoryHandlers{historyRepo: historyRepo, apiRepo: apiRepo}
}

// entityHistoryTables maps the route segment to the backing history table.
var entityHistoryTables = map[string]string{
	"customers":  "customer_history",
	"leads":      "lead_history",
	"branches":   "branch_history",
	"categories": "category_history",
}

// subjectHistory lists one entity's history records, newest first
func (h *HistoryHandlers) subjectHistory(entity string) echo.HandlerFunc {
	table := entityHistoryTables[entity]
	return func(c echo.Context) error {
		id, err := common.ValidateUUID(c.Param("id"), "id")
		if err != nil {
			return common.SendValidationError(c, "id", err.Error())
		}
		limit, offset := common.Pagination(c)

		records, err := h.historyRepo.ListBySubject(c.Request().Context(), table, id, limit, offset)
		if err != nil {
			return common.SendServerError(c, "Failed to load history")
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"history": records,
			"limit":   limit,
			"offset":  offset,
		})
	}
}

func (h *HistoryHandlers) CustomerHistory() echo.HandlerFunc { return h.subjectHistory("customers") }
func (h *HistoryHandlers) LeadHistory() echo.HandlerFunc     { return h.subjectHistory("leads") }
func (h *HistoryHandlers) BranchHistory() echo.HandlerFunc   { return h.subjectHistory("branches") }
func (h *HistoryHandlers) CategoryHistory() echo.HandlerFunc { return h.subjectHistory("categories") }

// HistoryDetail loads one history record by id
func (h *HistoryHandlers) HistoryDetail(c echo.Context) error {
	entity := c.Param("entity")
	table, ok := entityHistoryTables[entity]
	if !ok {
		return common.SendNotFoundError(c, "History for entity")
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	record, err := h.historyRepo.GetByID(c.Request().Context(), table, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "History record")
		}
		return common.SendServerError(c, "Failed to load history record")
	}
	return c.JSON(http.StatusOK, record)
}

// RecentHistory lists the newest records in one entity's history table
func (h *HistoryHandlers) RecentHistory(c echo.Context) error {
	entity := c.Param("entity")
	table, ok := entityHistoryTables[entity]
	if !ok {
		return common.SendNotFoundError(c, "History for entity")
	}
	limit, offset := common.Pagination(c)

	records, err := h.historyRepo.ListRecent(c.Request().Context(), table, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to load history")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"history": records,
		"limit":   limit,
		"offset":  offset,
	})
}

// ListAPIHistory pages through the control-side API call log
func (h *HistoryHandlers) ListAPIHistory(c echo.Context) error {
	limit, offset := common.Pagination(c)

	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := common.ValidateUUID(raw, "user_id")
		if err != nil {
			return common.SendValidationError(c, "user_id", err.Error())
		}
		entries, err := h.apiRepo.ListByUser(c.Request().Context(), userID, limit, offset)
		if err != nil {
			return common.SendServerError(c, "Failed to load API history")
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"api_history": entries})
	}

	entries, err := h.apiRepo.List(c.Request().Context(), limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to load API history")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"api_history": entries,
		"limit":       limit,
		"offset":      offset,
	})
}

// APIHistoryStats aggregates the call log over the last N days (default 7)
func (h *HistoryHandlers) APIHistoryStats(c echo.Context) error {
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			return common.SendValidationError(c, "days", "must be an integer between 1 and 365")
		}
		days = parsed
	}
	since := time.Now().AddDate(0, 0, -days)

	stats, err := h.apiRepo.Stats(c.Request().Context(), since)
	if err != nil {
		return common.SendServerError(c, "Failed to load API history stats")
	}
	return c.JSON(http.StatusOK, stats)
}
