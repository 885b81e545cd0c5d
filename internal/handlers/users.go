package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/services"
)

// UserHandler serves the user administration endpoints.
type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logging.OrNop(logger),
	}
}

// ListUsers returns users, optionally filtered by job_role_id and active.
func (h *UserHandler) ListUsers(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	jobRoleID, ok := parseOptionalID(c, "job_role_id")
	if !ok {
		return
	}
	filter := repository.UserFilter{JobRoleID: jobRoleID}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid active")
			return
		}
		filter.Active = &active
	}

	users, err := h.userService.ListUsers(principal, filter)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": dto.ToUserDTOs(users),
	})
}

// GetUser returns one user.
func (h *UserHandler) GetUser(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetUser(principal, id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// CreateUser creates an account on behalf of an administrator.
func (h *UserHandler) CreateUser(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	type CreateUserRequest struct {
		Username   string            `json:"username" binding:"required,min=3,max=50"`
		Email      string            `json:"email" binding:"required"`
		Password   string            `json:"password" binding:"required"`
		FirstName  *string           `json:"first_name"`
		LastName   *string           `json:"last_name"`
		SystemRole models.SystemRole `json:"system_role"`
		JobRoleID  *uint64           `json:"job_role_id"`
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	user, err := h.userService.CreateUser(principal, services.CreateUserInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		SystemRole: req.SystemRole,
		JobRoleID:  req.JobRoleID,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// UpdateUser applies a partial update. Sending job_role_id as null clears it.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	type UpdateUserRequest struct {
		Username   *string              `json:"username"`
		Email      *string              `json:"email"`
		Password   *string              `json:"password"`
		FirstName  *string              `json:"first_name"`
		LastName   *string              `json:"last_name"`
		SystemRole *models.SystemRole   `json:"system_role"`
		JobRoleID  dto.Optional[uint64] `json:"job_role_id"`
		IsActive   *bool                `json:"is_active"`
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	user, err := h.userService.UpdateUser(principal, id, services.UpdateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		SystemRole:   req.SystemRole,
		JobRoleID:    req.JobRoleID.Value,
		ClearJobRole: req.JobRoleID.Null(),
		IsActive:     req.IsActive,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// DeleteUser deactivates the account.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.userService.DeactivateUser(principal, id); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deactivated successfully",
	})
}

// ResetPassword sets or generates a new password for a user.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	type ResetPasswordRequest struct {
		NewPassword    string `json:"new_password"`
		GenerateRandom bool   `json:"generate_random"`
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	password, err := h.userService.ResetPassword(principal, id, services.ResetPasswordInput{
		NewPassword:    req.NewPassword,
		GenerateRandom: req.GenerateRandom,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	resp := gin.H{"message": "Password reset successfully"}
	if password != "" {
		resp["temporary_password"] = password
	}
	c.JSON(http.StatusOK, resp)
}
