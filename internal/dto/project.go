package dto

import (
	"time"

	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/utils"
)

// ProjectRoleDTO is one role assignment of a project
type ProjectRoleDTO struct {
	ID     uint64     `json:"id"`
	RoleID uint64     `json:"role_id"`
	Role   RoleRefDTO `json:"role"`
	UserID uint64     `json:"user_id"`
	User   UserRefDTO `json:"user"`
}

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID             uint64           `json:"id"`
	Name           string           `json:"name"`
	Description    *string          `json:"description"`
	StartDate      time.Time        `json:"start_date"`
	TaskCount      int64            `json:"task_count"`
	ProjectRoles   []ProjectRoleDTO `json:"project_roles"`
	GeneratedTasks *int             `json:"generated_tasks,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ProjectRefDTO is the short form of a project
type ProjectRefDTO struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date"`
}

// ProjectListResponse represents a paginated list of projects
type ProjectListResponse struct {
	Projects   []ProjectDTO `json:"projects"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalCount int64        `json:"total_count"`
	TotalPages int          `json:"total_pages"`
}

// ToProjectDTO converts a Project model and its task count to ProjectDTO
func ToProjectDTO(project models.Project, taskCount int64) ProjectDTO {
	dto := ProjectDTO{
		ID:           project.ID,
		Name:         project.Name,
		Description:  project.Description,
		StartDate:    project.StartDate,
		TaskCount:    taskCount,
		ProjectRoles: make([]ProjectRoleDTO, len(project.ProjectRoles)),
		CreatedAt:    project.CreatedAt,
		UpdatedAt:    project.UpdatedAt,
	}
	for i, assignment := range project.ProjectRoles {
		dto.ProjectRoles[i] = ProjectRoleDTO{
			ID:     assignment.ID,
			RoleID: assignment.RoleID,
			Role:   ToRoleRefDTO(assignment.Role),
			UserID: assignment.UserID,
			User:   ToUserRefDTO(assignment.User),
		}
	}
	return dto
}

// ToProjectRefDTO converts a Project model to ProjectRefDTO
func ToProjectRefDTO(project models.Project) ProjectRefDTO {
	return ProjectRefDTO{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		StartDate:   project.StartDate,
	}
}

// NewProjectListResponse builds a page of projects
func NewProjectListResponse(projects []ProjectDTO, params utils.PaginationParams, totalCount int64) ProjectListResponse {
	return ProjectListResponse{
		Projects:   projects,
		Page:       params.Page,
		PageSize:   params.Limit,
		TotalCount: totalCount,
		TotalPages: params.TotalPages(totalCount),
	}
}
