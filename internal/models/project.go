package models

import "time"

type Project struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	StartDate   time.Time `gorm:"not null" json:"start_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	ProjectRoles []ProjectRole `gorm:"foreignKey:ProjectID" json:"project_roles,omitempty"`
	ProjectTasks []ProjectTask `gorm:"foreignKey:ProjectID" json:"project_tasks,omitempty"`
}

// ProjectRole assigns one user to one role on one project.
type ProjectRole struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	ProjectID uint64    `gorm:"not null;uniqueIndex:idx_project_roles_project_role" json:"project_id"`
	RoleID    uint64    `gorm:"not null;uniqueIndex:idx_project_roles_project_role;index" json:"role_id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Project *Project      `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Role    Role          `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	User    User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Tasks   []ProjectTask `gorm:"foreignKey:ProjectRoleID" json:"-"`
}
