package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/catena-api/internal/dto"
	apierrors "github.com/yukikurage/catena-api/internal/errors"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/services"
	"github.com/yukikurage/catena-api/internal/validation"
)

// PasswordResetHandler serves the forgot / reset flow.
type PasswordResetHandler struct {
	resets *services.PasswordResetService
	log    logging.Logger
}

func NewPasswordResetHandler(resets *services.PasswordResetService, log logging.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{resets: resets, log: log}
}

type forgotRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Forgot mails a reset token to a registered email.
func (h *PasswordResetHandler) Forgot(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	if err := h.resets.Forgot(c.Request.Context(), req.Email); err != nil {
		respondAccountError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("A reset link has been sent to your email.", nil))
}

// Reset sets a new password from a mailed token and signs the user in.
func (h *PasswordResetHandler) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, validation.Messages(err))
		return
	}

	session, err := h.resets.Reset(c.Request.Context(), services.ResetInput{
		Email:    req.Email,
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		respondAccountError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Success: true,
		Message: "Password updated.",
		Data:    dto.ToUserDTO(*session.User),
		Token:   session.Token,
	})
}
