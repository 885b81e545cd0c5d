package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// Valid reports whether s is one of the three task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// ProjectTask is a concrete unit of work. Generated tasks carry the template task they
// came from; (project, template task, project role) is unique so generation can skip
// rows that already exist. Manual tasks have no template task.
type ProjectTask struct {
	ID               uint64     `gorm:"primarykey" json:"id"`
	ProjectID        uint64     `gorm:"not null;index;uniqueIndex:idx_project_tasks_origin,priority:1" json:"project_id"`
	TemplateTaskID   *uint64    `gorm:"uniqueIndex:idx_project_tasks_origin,priority:2" json:"template_task_id"`
	ProjectRoleID    uint64     `gorm:"not null;index;uniqueIndex:idx_project_tasks_origin,priority:3" json:"project_role_id"`
	Description      string     `gorm:"type:text;not null" json:"description"`
	DueDate          time.Time  `gorm:"not null;index" json:"due_date"`
	Status           TaskStatus `gorm:"type:varchar(20);not null;default:'TODO';index" json:"status"`
	Comments         *string    `gorm:"type:text" json:"comments"`
	TimeSpentMinutes int        `gorm:"not null;default:0" json:"time_spent_minutes"`
	CompletedAt      *time.Time `json:"completed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Relations
	Project      *Project         `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ProjectRole  *ProjectRole     `gorm:"foreignKey:ProjectRoleID" json:"project_role,omitempty"`
	TemplateTask *TemplateTask    `gorm:"foreignKey:TemplateTaskID;constraint:OnDelete:SET NULL" json:"template_task,omitempty"`
	Attachments  []TaskAttachment `gorm:"foreignKey:TaskID" json:"attachments,omitempty"`
}

// TaskAttachment is the metadata row for a stored file. FileName is the generated
// storage key; OriginalName is only used for display and downloads.
type TaskAttachment struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	TaskID       uint64    `gorm:"not null;index" json:"task_id"`
	FileName     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"file_name"`
	OriginalName string    `gorm:"type:varchar(255);not null" json:"original_name"`
	FileSize     int64     `gorm:"not null" json:"file_size"`
	MimeType     string    `gorm:"type:varchar(255);not null" json:"mime_type"`
	UploadedBy   string    `gorm:"type:varchar(100);not null" json:"uploaded_by"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`

	// Relations
	Task *ProjectTask `gorm:"foreignKey:TaskID" json:"-"`
}
