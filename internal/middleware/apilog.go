package middleware

import (
	"time"

	"crmsaas/internal/common"
	"crmsaas/internal/models"
	"crmsaas/internal/repositories"
	"crmsaas/internal/tenancy"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// skipLoggedPaths are endpoints too chatty or too sensitive to record.
var skipLoggedPaths = map[string]bool{
	"/health":          true,
	"/api/auth/login":  true,
	"/api/auth/otp":    true,
	"/api/auth/verify": true,
}

// APILogger records one api_history row per request in the control database.
// Logging failures never fail the request they describe.
func APILogger(repo repositories.APIHistoryRepository, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipLoggedPaths[c.Path()] {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()

			ctx := c.Request().Context()
			entry := &models.APIHistory{
				ID:             uuid.New(),
				Method:         c.Request().Method,
				Endpoint:       c.Request().URL.Path,
				ResponseStatus: c.Response().Status,
				IPAddress:      strPtr(c.RealIP()),
				UserAgent:      strPtr(c.Request().UserAgent()),
				ExecutionTime:  elapsed,
			}
			if userID, ok := common.GetUserIDFromContext(ctx); ok {
				entry.UserID = &userID
			}
			if tenant, ok := tenancy.CurrentTenant(ctx); ok {
				entry.TenantID = &tenant.ID
			}
			if err != nil {
				msg := err.Error()
				entry.ErrorMessage = &msg
				if he, ok := err.(*echo.HTTPError); ok {
					entry.ResponseStatus = he.Code
				}
			}

			if logErr := repo.Create(ctx, entry); logErr != nil {
				log.Warn("failed to record api call",
					zap.String("endpoint", entry.Endpoint),
					zap.Error(logErr))
			}
			return err
		}
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
