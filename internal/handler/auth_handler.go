package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

type signInRequest struct {
	Email string `json:"email"`
	// Password is accepted for form compatibility and never checked.
	Password string `json:"password"`
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	h.signIn(c, http.StatusOK)
}

// Register behaves like SignIn; accounts are created on first sign-in.
func (h *AuthHandler) Register(c *gin.Context) {
	h.signIn(c, http.StatusCreated)
}

func (h *AuthHandler) signIn(c *gin.Context, status int) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := h.authService.SignIn(c.Request.Context(), req.Email)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(status, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, apiErr := h.authService.CurrentUser(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
