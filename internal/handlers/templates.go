package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/services"
)

// TemplateHandler serves checklist templates and AI drafting.
type TemplateHandler struct {
	templateService *services.TemplateService
	logger          *zap.Logger
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templateService *services.TemplateService, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		logger:          logging.OrNop(logger),
	}
}

type templateTaskRequest struct {
	Description string `json:"description"`
	OffsetDays  int    `json:"offset_days"`
	IsRecurring bool   `json:"is_recurring"`
	IsCritical  bool   `json:"is_critical"`
}

type templateRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description *string               `json:"description"`
	RoleID      uint64                `json:"role_id" binding:"required"`
	AutoAssign  bool                  `json:"auto_assign"`
	Tasks       []templateTaskRequest `json:"template_tasks"`
}

func (r templateRequest) input() services.TemplateInput {
	tasks := make([]services.TemplateTaskInput, len(r.Tasks))
	for i, t := range r.Tasks {
		tasks[i] = services.TemplateTaskInput{
			Description: t.Description,
			OffsetDays:  t.OffsetDays,
			IsRecurring: t.IsRecurring,
			IsCritical:  t.IsCritical,
		}
	}
	return services.TemplateInput{
		Name:        r.Name,
		Description: r.Description,
		RoleID:      r.RoleID,
		AutoAssign:  r.AutoAssign,
		Tasks:       tasks,
	}
}

// ListTemplates returns templates, optionally for a single role_id.
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	roleID, ok := parseOptionalID(c, "role_id")
	if !ok {
		return
	}

	templates, err := h.templateService.ListTemplates(principal, repository.TemplateFilter{RoleID: roleID})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": dto.ToTemplateDTOs(templates),
	})
}

// GetTemplate returns a template with its tasks.
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	template, err := h.templateService.GetTemplate(principal, id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTemplateDTO(*template))
}

// CreateTemplate adds a template and its tasks.
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Name and role_id are required", err)
		return
	}

	template, err := h.templateService.CreateTemplate(principal, req.input())
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTemplateDTO(*template))
}

// UpdateTemplate replaces a template's fields and its whole task set.
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Name and role_id are required", err)
		return
	}

	template, err := h.templateService.UpdateTemplate(principal, id, req.input())
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTemplateDTO(*template))
}

// DeleteTemplate removes a template no project task came from.
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.templateService.DeleteTemplate(principal, id); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Template deleted successfully",
	})
}

// SuggestTasks drafts template tasks from free text. Nothing is persisted.
func (h *TemplateHandler) SuggestTasks(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	type SuggestTasksRequest struct {
		Text     string  `json:"text" binding:"required"`
		RoleID   *uint64 `json:"role_id"`
		MaxTasks int     `json:"max_tasks" binding:"omitempty,min=1"`
	}

	var req SuggestTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	tasks, err := h.templateService.SuggestTasks(c.Request.Context(), principal, services.SuggestTasksInput{
		RoleID:   req.RoleID,
		Text:     req.Text,
		MaxTasks: req.MaxTasks,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
	})
}
