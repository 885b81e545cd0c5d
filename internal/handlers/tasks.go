package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/services"
	"github.com/yukikurage/rollout-ready-api/internal/utils"
)

// TaskHandler serves project tasks and the per-user dashboard.
type TaskHandler struct {
	taskService *services.TaskService
	logger      *zap.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logging.OrNop(logger),
	}
}

// ListTasks returns tasks filtered by project_id, status and assignee_id.
// A USER only sees their own tasks.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	projectID, ok := parseOptionalID(c, "project_id")
	if !ok {
		return
	}
	assigneeID, ok := parseOptionalID(c, "assignee_id")
	if !ok {
		return
	}
	var status *models.TaskStatus
	if raw := c.Query("status"); raw != "" {
		s := models.TaskStatus(raw)
		status = &s
	}

	params := utils.GetPaginationParams(c)

	tasks, total, err := h.taskService.ListTasks(principal, services.ListTasksInput{
		ProjectID:  projectID,
		AssigneeID: assigneeID,
		Status:     status,
		Page:       params.Page,
		PageSize:   params.Limit,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params, total))
}

// GetTask returns a task with its project, assignment and attachments.
func (h *TaskHandler) GetTask(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(principal, id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UpdateTask changes status, comments, time spent or completion time.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	type UpdateTaskRequest struct {
		Status           *models.TaskStatus      `json:"status"`
		Comments         *string                 `json:"comments"`
		TimeSpentMinutes *int                    `json:"time_spent_minutes"`
		CompletedAt      dto.Optional[time.Time] `json:"completed_at"`
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, "Invalid request body", err)
		return
	}

	task, err := h.taskService.UpdateTask(principal, id, services.UpdateTaskInput{
		Status:           req.Status,
		Comments:         req.Comments,
		TimeSpentMinutes: req.TimeSpentMinutes,
		CompletedAt:      req.CompletedAt.Value,
		ClearCompletedAt: req.CompletedAt.Null(),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask removes a task and its attachments.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), principal, id); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// GetDashboard returns a user's tasks grouped by project with a summary.
func (h *TaskHandler) GetDashboard(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	dashboard, err := h.taskService.Dashboard(principal, c.Param("username"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDashboardDTO(dashboard))
}
