package dto

import (
	"time"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// RoleRefDTO is the short form of a role
type RoleRefDTO struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// RoleDTO represents a role in API responses. The counts are only set in lists.
type RoleDTO struct {
	ID               uint64    `json:"id"`
	Name             string    `json:"name"`
	Description      *string   `json:"description"`
	TemplateCount    *int64    `json:"template_count,omitempty"`
	ProjectRoleCount *int64    `json:"project_role_count,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TemplateTaskDTO represents one blueprint row
type TemplateTaskDTO struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
	OffsetDays  int    `json:"offset_days"`
	IsRecurring bool   `json:"is_recurring"`
	IsCritical  bool   `json:"is_critical"`
}

// TemplateDTO represents a template with its tasks
type TemplateDTO struct {
	ID            uint64            `json:"id"`
	Name          string            `json:"name"`
	Description   *string           `json:"description"`
	RoleID        uint64            `json:"role_id"`
	Role          *RoleRefDTO       `json:"role,omitempty"`
	AutoAssign    bool              `json:"auto_assign"`
	TemplateTasks []TemplateTaskDTO `json:"template_tasks"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ToRoleRefDTO converts a Role model to RoleRefDTO
func ToRoleRefDTO(role models.Role) RoleRefDTO {
	return RoleRefDTO{ID: role.ID, Name: role.Name}
}

// ToRoleDTO converts a Role model to RoleDTO
func ToRoleDTO(role models.Role) RoleDTO {
	return RoleDTO{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

// ToRoleSummaryDTO converts a role together with its usage counts
func ToRoleSummaryDTO(role models.Role, templateCount, projectRoleCount int64) RoleDTO {
	dto := ToRoleDTO(role)
	dto.TemplateCount = &templateCount
	dto.ProjectRoleCount = &projectRoleCount
	return dto
}

// ToTemplateDTO converts a Template model to TemplateDTO
func ToTemplateDTO(template models.Template) TemplateDTO {
	dto := TemplateDTO{
		ID:            template.ID,
		Name:          template.Name,
		Description:   template.Description,
		RoleID:        template.RoleID,
		AutoAssign:    template.AutoAssign,
		TemplateTasks: make([]TemplateTaskDTO, len(template.TemplateTasks)),
		CreatedAt:     template.CreatedAt,
		UpdatedAt:     template.UpdatedAt,
	}

	// Include role if preloaded
	if template.Role.ID != 0 {
		ref := ToRoleRefDTO(template.Role)
		dto.Role = &ref
	}

	for i, task := range template.TemplateTasks {
		dto.TemplateTasks[i] = TemplateTaskDTO{
			ID:          task.ID,
			Description: task.Description,
			OffsetDays:  task.OffsetDays,
			IsRecurring: task.IsRecurring,
			IsCritical:  task.IsCritical,
		}
	}
	return dto
}

// ToTemplateDTOs converts a slice of templates
func ToTemplateDTOs(templates []models.Template) []TemplateDTO {
	dtos := make([]TemplateDTO, len(templates))
	for i, template := range templates {
		dtos[i] = ToTemplateDTO(template)
	}
	return dtos
}
