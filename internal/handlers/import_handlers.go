package handlers

import (
	"context"
	"io"
	"net/http"

	"crmsaas/internal/common"
	"crmsaas/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ImportHandlers handles bulk CSV/XLSX uploads
type ImportHandlers struct {
	importerSvc services.ImporterService
}

func NewImportHandlers(importerSvc services.ImporterService) *ImportHandlers {
	return &ImportHandlers{importerSvc: importerSvc}
}

type importFunc func(ctx context.Context, filename string, r io.Reader, actor *uuid.UUID) (*services.ImportReport, error)

// ImportCustomers imports customers from an uploaded file
func (h *ImportHandlers) ImportCustomers(c echo.Context) error {
	return h.runImport(c, h.importerSvc.ImportCustomers)
}

// ImportLeads imports leads from an uploaded file
func (h *ImportHandlers) ImportLeads(c echo.Context) error {
	return h.runImport(c, h.importerSvc.ImportLeads)
}

func (h *ImportHandlers) runImport(c echo.Context, run importFunc) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "A file upload named 'file' is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return common.SendServerError(c, "Failed to read upload")
	}
	defer src.Close()

	ctx := c.Request().Context()
	report, err := run(ctx, fileHeader.Filename, src, common.ActorFromContext(ctx))
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
