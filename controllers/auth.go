package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/campushub/loyalty-be/services"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService *services.AuthService
}

func NewAuthController() *AuthController {
	return &AuthController{
		authService: services.NewAuthService(),
	}
}

type LoginRequest struct {
	Utorid   string `json:"utorid" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResetRequest struct {
	Utorid string `json:"utorid" binding:"required"`
}

type ResetPasswordRequest struct {
	Utorid   string `json:"utorid" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/tokens
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing utorid or password"})
		return
	}

	_, token, expiresAt, err := ac.authService.Login(req.Utorid, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

// POST /auth/resets
func (ac *AuthController) RequestPasswordReset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing utorid"})
		return
	}

	reset, err := ac.authService.CreateResetToken(req.Utorid, services.ResetTokenLifetime)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"resetToken": reset.Token,
		"expiresAt":  reset.ExpiresAt.Format(time.RFC3339),
	})
}

// POST /auth/resets/:resetToken
func (ac *AuthController) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing utorid or password"})
		return
	}

	err := ac.authService.ConsumeResetToken(c.Param("resetToken"), req.Utorid, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
	case errors.Is(err, services.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid password format"})
	case errors.Is(err, services.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid token"})
	case errors.Is(err, services.ErrTokenExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Token expired"})
	case errors.Is(err, services.ErrTokenMismatch):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utorid does not match token"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
