package handlers

import (
	"errors"
	"net/http"
	"strings"

	"crmsaas/internal/common"
	"crmsaas/internal/services"

	"github.com/labstack/echo/v4"
)

// AuthHandlers handles authentication HTTP requests
type AuthHandlers struct {
	authSvc services.AuthService
}

func NewAuthHandlers(authSvc services.AuthService) *AuthHandlers {
	return &AuthHandlers{authSvc: authSvc}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	// Tenant is an optional hint; without it the login falls back to the
	// central store and then each active tenant.
	Tenant string `json:"tenant"`
}

// Login authenticates a user and returns a bearer token
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	}

	resp, err := h.authSvc.Login(c.Request().Context(), req.Username, req.Password, req.Tenant)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Login failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Register creates a user account in the store the request resolves to
func (h *AuthHandlers) Register(c echo.Context) error {
	var req services.RegisterUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	user, err := h.authSvc.Register(c.Request().Context(), &req)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}

// Logout revokes the presented bearer token
func (h *AuthHandlers) Logout(c echo.Context) error {
	header := c.Request().Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing bearer token")
	}

	if err := h.authSvc.Logout(c.Request().Context(), token); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestOTP mails a one-time login code
func (h *AuthHandlers) RequestOTP(c echo.Context) error {
	var req OTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email is required")
	}

	if err := h.authSvc.RequestOTP(c.Request().Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrTooManyRequests) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send code")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "If the account exists, a code has been sent"})
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// VerifyOTP exchanges a one-time code for a bearer token
func (h *AuthHandlers) VerifyOTP(c echo.Context) error {
	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Email == "" || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and code are required")
	}

	resp, err := h.authSvc.VerifyOTP(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired code")
	}
	return c.JSON(http.StatusOK, resp)
}
