package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/middleware"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logging.OrNop(logger),
	}
}

// Register creates a USER account and logs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	type RegisterRequest struct {
		Username        string `json:"username" binding:"required,min=3,max=50"`
		Email           string `json:"email" binding:"required"`
		Password        string `json:"password" binding:"required"`
		ConfirmPassword string `json:"confirm_password" binding:"required"`
		FirstName       string `json:"first_name" binding:"required"`
		LastName        string `json:"last_name" binding:"required"`
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	user, session, err := h.authService.Register(services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	if !h.startSession(c, session) {
		return
	}
	c.JSON(http.StatusCreated, dto.ToAuthResponse(*user, *session))
}

// Login authenticates a user by username or email and initializes the session.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Identifier string `json:"identifier"`
		Username   string `json:"username"`
		Password   string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}

	user, session, err := h.authService.Login(services.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	if !h.startSession(c, session) {
		return
	}
	c.JSON(http.StatusOK, dto.ToAuthResponse(*user, *session))
}

func (h *AuthHandler) startSession(c *gin.Context, s *models.Session) bool {
	session := sessions.Default(c)
	session.Set(constants.SessionTokenKey, s.Token)
	if err := session.Save(); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		apierrors.InternalError(c, "Failed to save session")
		return false
	}
	return true
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(middleware.SessionToken(c)); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.authService.GetUser(userID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}
