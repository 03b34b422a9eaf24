package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// HealthHandlers serves liveness and readiness probes
type HealthHandlers struct {
	control *pgxpool.Pool
}

func NewHealthHandlers(control *pgxpool.Pool) *HealthHandlers {
	return &HealthHandlers{control: control}
}

// HealthCheck reports process liveness and control database reachability
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	services := map[string]string{"control_database": "ok"}
	if err := h.control.Ping(ctx); err != nil {
		services["control_database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, map[string]interface{}{
		"status":    http.StatusText(status),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}
