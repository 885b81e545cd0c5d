package dto

import (
	"time"

	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/services"
	"github.com/yukikurage/rollout-ready-api/internal/utils"
)

// AttachmentDTO represents attachment metadata in API responses
type AttachmentDTO struct {
	ID           uint64    `json:"id"`
	TaskID       uint64    `json:"task_id"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskDTO represents a project task in API responses
type TaskDTO struct {
	ID               uint64            `json:"id"`
	ProjectID        uint64            `json:"project_id"`
	Project          *ProjectRefDTO    `json:"project,omitempty"`
	ProjectRoleID    uint64            `json:"project_role_id"`
	Role             *RoleRefDTO       `json:"role,omitempty"`
	Assignee         *UserRefDTO       `json:"assignee,omitempty"`
	TemplateTaskID   *uint64           `json:"template_task_id"`
	Description      string            `json:"description"`
	DueDate          time.Time         `json:"due_date"`
	Status           models.TaskStatus `json:"status"`
	Comments         *string           `json:"comments"`
	TimeSpentMinutes int               `json:"time_spent_minutes"`
	CompletedAt      *time.Time        `json:"completed_at"`
	IsCritical       bool              `json:"is_critical"`
	IsRecurring      bool              `json:"is_recurring"`
	Attachments      []AttachmentDTO   `json:"attachments,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO `json:"tasks"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// DashboardSummaryDTO counts a user's tasks
type DashboardSummaryDTO struct {
	TotalTasks      int `json:"total_tasks"`
	TodoTasks       int `json:"todo_tasks"`
	InProgressTasks int `json:"in_progress_tasks"`
	DoneTasks       int `json:"done_tasks"`
	OverdueTasks    int `json:"overdue_tasks"`
	CriticalTasks   int `json:"critical_tasks"`
	ActiveProjects  int `json:"active_projects"`
}

// ProjectTasksDTO is one project role's tasks on a dashboard
type ProjectTasksDTO struct {
	Project ProjectRefDTO `json:"project"`
	Role    RoleRefDTO    `json:"role"`
	Tasks   []TaskDTO     `json:"tasks"`
}

// DashboardDTO is the per-user task overview
type DashboardDTO struct {
	User         UserRefDTO          `json:"user"`
	Summary      DashboardSummaryDTO `json:"summary"`
	ProjectTasks []ProjectTasksDTO   `json:"project_tasks"`
	AllTasks     []TaskDTO           `json:"all_tasks"`
}

// ToAttachmentDTO converts a TaskAttachment model to AttachmentDTO
func ToAttachmentDTO(attachment models.TaskAttachment) AttachmentDTO {
	return AttachmentDTO{
		ID:           attachment.ID,
		TaskID:       attachment.TaskID,
		FileName:     attachment.FileName,
		OriginalName: attachment.OriginalName,
		FileSize:     attachment.FileSize,
		MimeType:     attachment.MimeType,
		UploadedBy:   attachment.UploadedBy,
		CreatedAt:    attachment.CreatedAt,
	}
}

// ToAttachmentDTOs converts a slice of attachments
func ToAttachmentDTOs(attachments []models.TaskAttachment) []AttachmentDTO {
	dtos := make([]AttachmentDTO, len(attachments))
	for i, attachment := range attachments {
		dtos[i] = ToAttachmentDTO(attachment)
	}
	return dtos
}

// ToTaskDTO converts a ProjectTask model to TaskDTO
func ToTaskDTO(task models.ProjectTask) TaskDTO {
	dto := TaskDTO{
		ID:               task.ID,
		ProjectID:        task.ProjectID,
		ProjectRoleID:    task.ProjectRoleID,
		TemplateTaskID:   task.TemplateTaskID,
		Description:      task.Description,
		DueDate:          task.DueDate,
		Status:           task.Status,
		Comments:         task.Comments,
		TimeSpentMinutes: task.TimeSpentMinutes,
		CompletedAt:      task.CompletedAt,
		CreatedAt:        task.CreatedAt,
		UpdatedAt:        task.UpdatedAt,
	}

	// Include project if preloaded
	if task.Project != nil {
		project := ToProjectRefDTO(*task.Project)
		dto.Project = &project
	}

	// Include role and assignee if preloaded
	if task.ProjectRole != nil {
		if task.ProjectRole.Role.ID != 0 {
			role := ToRoleRefDTO(task.ProjectRole.Role)
			dto.Role = &role
		}
		if task.ProjectRole.User.ID != 0 {
			assignee := ToUserRefDTO(task.ProjectRole.User)
			dto.Assignee = &assignee
		}
	}

	// Flags come from the template task; manual tasks have none
	if task.TemplateTask != nil {
		dto.IsCritical = task.TemplateTask.IsCritical
		dto.IsRecurring = task.TemplateTask.IsRecurring
	}

	if len(task.Attachments) > 0 {
		dto.Attachments = ToAttachmentDTOs(task.Attachments)
	}
	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.ProjectTask) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		dtos[i] = ToTaskDTO(task)
	}
	return dtos
}

// ToTaskListResponse converts a slice of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.ProjectTask, params utils.PaginationParams, totalCount int64) TaskListResponse {
	return TaskListResponse{
		Tasks:      ToTaskDTOs(tasks),
		Page:       params.Page,
		PageSize:   params.Limit,
		TotalCount: totalCount,
		TotalPages: params.TotalPages(totalCount),
	}
}

// ToDashboardDTO converts a dashboard
func ToDashboardDTO(d *services.Dashboard) DashboardDTO {
	summary := DashboardSummaryDTO{
		TotalTasks:      d.Summary.Total,
		TodoTasks:       d.Summary.Todo,
		InProgressTasks: d.Summary.InProgress,
		DoneTasks:       d.Summary.Done,
		OverdueTasks:    d.Summary.Overdue,
		CriticalTasks:   d.Summary.Critical,
		ActiveProjects:  d.Summary.ActiveProjects,
	}

	dto := DashboardDTO{
		User:         ToUserRefDTO(*d.User),
		Summary:      summary,
		ProjectTasks: make([]ProjectTasksDTO, len(d.Projects)),
		AllTasks:     ToTaskDTOs(d.Tasks),
	}
	for i, group := range d.Projects {
		dto.ProjectTasks[i] = ProjectTasksDTO{
			Project: ToProjectRefDTO(group.Project),
			Role:    ToRoleRefDTO(group.Role),
			Tasks:   ToTaskDTOs(group.Tasks),
		}
	}
	return dto
}
