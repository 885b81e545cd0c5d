package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/services"
	"github.com/yukikurage/rollout-ready-api/internal/utils"
)

// ProjectHandler serves projects, their role assignments and manual tasks.
type ProjectHandler struct {
	projectService *services.ProjectService
	taskService    *services.TaskService
	logger         *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService *services.ProjectService, taskService *services.TaskService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		taskService:    taskService,
		logger:         logging.OrNop(logger),
	}
}

func projectDTO(result *services.ProjectResult, withGenerated bool) dto.ProjectDTO {
	project := dto.ToProjectDTO(*result.Project, result.TaskCount)
	if withGenerated {
		generated := result.GeneratedTasks
		project.GeneratedTasks = &generated
	}
	return project
}

// ListProjects returns a page of projects, newest first.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	results, total, err := h.projectService.ListProjects(principal, params.Page, params.Limit)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	projects := make([]dto.ProjectDTO, len(results))
	for i := range results {
		projects[i] = projectDTO(&results[i], false)
	}
	c.JSON(http.StatusOK, dto.NewProjectListResponse(projects, params, total))
}

// GetProject returns a project with its assignments.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.projectService.GetProject(principal, id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, projectDTO(result, false))
}

// CreateProject creates a project, assigns roles and generates its tasks.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	type CreateProjectRequest struct {
		Name            string             `json:"name" binding:"required,max=255"`
		Description     *string            `json:"description"`
		StartDate       string             `json:"start_date" binding:"required"`
		RoleAssignments map[string]*uint64 `json:"role_assignments"`
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Name and start_date are required", err)
		return
	}

	result, err := h.projectService.CreateProject(principal, services.CreateProjectInput{
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       req.StartDate,
		RoleAssignments: req.RoleAssignments,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, projectDTO(result, true))
}

// UpdateProject edits project fields and role assignments. Newly confirmed
// assignments get their template tasks generated.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	type UpdateProjectRequest struct {
		Name            *string            `json:"name" binding:"omitempty,max=255"`
		Description     *string            `json:"description"`
		StartDate       *string            `json:"start_date"`
		RoleAssignments map[string]*uint64 `json:"role_assignments"`
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	result, err := h.projectService.UpdateProject(c.Request.Context(), principal, id, services.UpdateProjectInput{
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       req.StartDate,
		RoleAssignments: req.RoleAssignments,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, projectDTO(result, true))
}

// DeleteProject removes a project with its tasks and attachments.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), principal, id); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Project deleted successfully",
	})
}

// CreateTask adds a manual task to one of the project's assignments.
func (h *ProjectHandler) CreateTask(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		ProjectRoleID uint64 `json:"project_role_id" binding:"required"`
		Description   string `json:"description" binding:"required"`
		DueDate       string `json:"due_date" binding:"required"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "project_role_id, description and due_date are required", err)
		return
	}

	task, err := h.taskService.CreateTask(principal, id, services.CreateTaskInput{
		ProjectRoleID: req.ProjectRoleID,
		Description:   req.Description,
		DueDate:       req.DueDate,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}
