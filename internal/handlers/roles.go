package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/services"
)

// RoleHandler serves the role catalog.
type RoleHandler struct {
	roleService *services.RoleService
	logger      *zap.Logger
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(roleService *services.RoleService, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
		logger:      logging.OrNop(logger),
	}
}

type roleRequest struct {
	Name        string  `json:"name" binding:"required,max=255"`
	Description *string `json:"description"`
}

func (r roleRequest) input() services.RoleInput {
	return services.RoleInput{Name: r.Name, Description: r.Description}
}

// ListRoles returns every role with its usage counts.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	summaries, err := h.roleService.ListRoles(principal)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	roles := make([]dto.RoleDTO, len(summaries))
	for i, s := range summaries {
		roles[i] = dto.ToRoleSummaryDTO(s.Role, s.TemplateCount, s.ProjectRoleCount)
	}
	c.JSON(http.StatusOK, gin.H{
		"roles": roles,
	})
}

// GetRole returns one role.
func (h *RoleHandler) GetRole(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	role, err := h.roleService.GetRole(principal, id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRoleDTO(*role))
}

// CreateRole adds a role to the catalog.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Role name is required", err)
		return
	}

	role, err := h.roleService.CreateRole(principal, req.input())
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToRoleDTO(*role))
}

// UpdateRole renames a role or changes its description.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Role name is required", err)
		return
	}

	role, err := h.roleService.UpdateRole(principal, id, req.input())
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRoleDTO(*role))
}

// DeleteRole removes a role that no project uses.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.roleService.DeleteRole(principal, id); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Role deleted successfully",
	})
}
