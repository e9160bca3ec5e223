package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/model"
	"bchfaucet/internal/service"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignupRequest wraps the new user.
type SignupRequest struct {
	User service.SignupInput `json:"user"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

var errBadBody = apperrors.NewValidationError("invalid request body")

// Signup godoc
// @Summary Register a new user
// @Tags users
// @Accept json
// @Produce json
// @Param request body SignupRequest true "User to create"
// @Success 200 {object} AuthResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}

	user, token, err := h.authService.Signup(c.Request().Context(), req.User)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{User: user, Token: token})
}

// Login godoc
// @Summary Login with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	if err := c.Validate(&req); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	user, token, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{User: user, Token: token})
}
