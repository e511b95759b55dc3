package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
)

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// observe records the outcome of an auth operation.
func observe(operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAuthentication),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound):
		result = "rejected"
	default:
		result = "error"
	}
	metrics.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  response{data=authResponse}
// @Failure      400   {object}  response
// @Failure      500   {object}  response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	res, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.Role(req.Role),
		Phone:     req.Phone,
	})
	observe("register", err)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			return c.JSON(http.StatusBadRequest, response{Message: "User with this email already exists"})
		case errors.Is(err, domain.ErrValidation):
			return validationFailed(c, err)
		}
		return err
	}

	return c.JSON(http.StatusCreated, response{
		Success: true,
		Message: "User registered successfully",
		Data:    authResponse{User: res.User, Token: res.Token},
	})
}

// Login authenticates a user and returns a session token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  response{data=authResponse}
// @Failure      400   {object}  response
// @Failure      401   {object}  response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	observe("login", err)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			return c.JSON(http.StatusUnauthorized, response{Message: "Invalid credentials"})
		}
		return err
	}

	return c.JSON(http.StatusOK, response{
		Success: true,
		Message: "Login successful",
		Data:    authResponse{User: res.User, Token: res.Token},
	})
}

// ForgotPassword starts a password reset. The response never reveals
// whether the email is registered.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  response
// @Failure      400   {object}  response
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	err := h.authService.RequestPasswordReset(c.Request().Context(), req.Email)
	observe("forgot_password", err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, response{Success: true, Message: forgotPasswordMessage})
}

// ResetPassword completes a password reset with the emailed token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Reset token and new password"
// @Success      200   {object}  response
// @Failure      400   {object}  response
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	err := h.authService.CompletePasswordReset(c.Request().Context(), req.Token, req.NewPassword)
	observe("reset_password", err)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthentication), errors.Is(err, domain.ErrNotFound):
			return c.JSON(http.StatusBadRequest, response{Message: "Invalid or expired reset token"})
		case errors.Is(err, domain.ErrValidation):
			return validationFailed(c, err)
		}
		return err
	}

	return c.JSON(http.StatusOK, response{Success: true, Message: "Password reset successfully"})
}

// ChangePassword replaces the caller's password.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  response
// @Failure      400   {object}  response
// @Failure      401   {object}  response
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	subjectID, err := ctxSubject(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	err = h.authService.ChangePassword(c.Request().Context(), subjectID, req.CurrentPassword, req.NewPassword)
	observe("change_password", err)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthentication):
			return c.JSON(http.StatusBadRequest, response{Message: "Current password is incorrect"})
		case errors.Is(err, domain.ErrValidation):
			return validationFailed(c, err)
		}
		return err
	}

	return c.JSON(http.StatusOK, response{Success: true, Message: "Password changed successfully"})
}

// RefreshToken issues a new session token for the caller.
//
// @Summary      Refresh session token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response{data=tokenResponse}
// @Failure      401  {object}  response
// @Router       /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	subjectID, err := ctxSubject(c)
	if err != nil {
		return err
	}

	token, err := h.authService.Refresh(c.Request().Context(), subjectID)
	observe("refresh", err)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			return c.JSON(http.StatusUnauthorized, response{Message: "Invalid credentials"})
		}
		return err
	}

	return c.JSON(http.StatusOK, response{Success: true, Data: tokenResponse{Token: token}})
}

// Logout acknowledges a client-side logout. Tokens stay valid until they
// expire.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	subjectID, err := ctxSubject(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), subjectID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{Success: true, Message: "Logged out successfully"})
}

// Profile returns the caller's identity.
//
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response{data=domain.User}
// @Failure      401  {object}  response
// @Failure      404  {object}  response
// @Router       /auth/profile [get]
func (h *AuthHandler) Profile(c echo.Context) error {
	subjectID, err := ctxSubject(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Profile(c.Request().Context(), subjectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{Success: true, Data: user})
}
