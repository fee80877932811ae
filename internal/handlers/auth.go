package handlers

import (
	"errors"
	"net/http"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RegisterAuthHandlers registers all auth-related routes
func RegisterAuthHandlers(r *gin.Engine, authService *services.AuthService, logger zerolog.Logger) {
	handler := &authHandler{
		authService: authService,
		logger:      logger.With().Str("handler", "auth").Logger(),
	}

	auth := r.Group("/api/auth")
	{
		auth.POST("/create-admin-user", handler.createAdminUser)
		auth.POST("/login", handler.login)
		auth.POST("/refresh-token", handler.refreshToken)
	}
}

type authHandler struct {
	authService *services.AuthService
	logger      zerolog.Logger
}

type createAdminRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=16"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type userSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// createAdminUser bootstraps the first admin; later admins need a logged-in caller
func (h *authHandler) createAdminUser(c *gin.Context) {
	ctx := c.Request.Context()

	exists, err := h.authService.HasAdmin(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if exists {
		if _, ok := authenticate(c, h.authService.Tokens(), bearerToken(c)); !ok {
			return
		}
	}

	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.CreateAdmin(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Admin user created successfully",
		"user":    userSummary{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// login exchanges credentials for a token pair
func (h *authHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Int64("userID", result.User.ID).Msg("Admin logged in")
	c.JSON(http.StatusOK, gin.H{
		"message":      "Login successful",
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"user":         userSummary{ID: result.User.ID, Name: result.User.Name, Email: result.User.Email},
	})
}

// refreshToken rotates a token pair
func (h *authHandler) refreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired", "expired": true})
		return
	case errors.Is(err, services.ErrTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token", "malformed": true})
		return
	case err != nil:
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Token refreshed successfully",
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"user":         userSummary{ID: result.User.ID, Name: result.User.Name, Email: result.User.Email},
	})
}
