package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/dto"
	apierrors "github.com/yukikurage/catena-api/internal/errors"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/services"
	"github.com/yukikurage/catena-api/internal/validation"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
	log         logging.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,max=254"`
	Email    *string `json:"email" binding:"omitempty,email,max=254"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Signup registers a new user.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	session, err := h.authService.Signup(c.Request.Context(), services.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	if !h.startSession(c, session.User.ID) {
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Success: true,
		Data:    dto.ToUserDTO(*session.User),
		Token:   session.Token,
	})
}

// Authenticate verifies credentials, starts the session and returns the
// user with tasks and a bearer token.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	session, err := h.authService.Authenticate(c.Request.Context(), services.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	if !h.startSession(c, session.User.ID) {
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Success: true,
		Data:    dto.ToUserDTO(*session.User),
		Token:   session.Token,
	})
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Logged out successfully", nil))
}

// Profile returns the authenticated user with tasks and schedules.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.authService.Profile(c.Request.Context(), userID)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.ToUserDTO(*user)))
}

// UpdateProfile edits username and email.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, services.UpdateProfileInput{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Profile updated.", dto.ToUserDTO(*user)))
}

// ChangePassword replaces the password of the authenticated user.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Password updated.", nil))
}

func (h *AuthHandler) startSession(c *gin.Context, userID uint64) bool {
	session := sessions.Default(c)
	session.Set(constants.ContextKeyUserID, userID)
	if err := session.Save(); err != nil {
		h.log.Error(c.Request.Context(), "failed to save session", "user_id", userID, "error", err)
		apierrors.InternalError(c, "Failed to save session")
		return false
	}
	return true
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	respondAccountError(c, h.log, err)
}

// respondAccountError maps account service errors, shared with the
// password reset handlers.
func respondAccountError(c *gin.Context, log logging.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		apierrors.ValidationFailed(c, validation.Messages(err))
	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.ValidationFailed(c, []validation.FieldError{{
			Field:      "password",
			Validation: "min",
			Message:    fmt.Sprintf("password must be at least %d characters", constants.MinPasswordLength),
		}})
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.AlreadyExists(c, "Email already exists", []validation.FieldError{{
			Field: "email", Validation: "unique", Message: "email is already registered",
		}})
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c, "")
	case errors.Is(err, services.ErrResetTokenExpired):
		apierrors.TokenExpired(c, "")
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrPersistence):
		apierrors.OperationFailed(c, "")
	default:
		log.Error(c.Request.Context(), "unhandled account error", "error", err)
		apierrors.InternalError(c, "")
	}
}
