package models

import "time"

type Template struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	RoleID      uint64    `gorm:"not null;index" json:"role_id"`
	AutoAssign  bool      `gorm:"not null;default:false" json:"auto_assign"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Role          Role           `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	TemplateTasks []TemplateTask `gorm:"foreignKey:TemplateID" json:"template_tasks,omitempty"`
}

// TemplateTask is the blueprint for one generated project task.
// OffsetDays is relative to the project start date and may be negative.
type TemplateTask struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	TemplateID  uint64    `gorm:"not null;index" json:"template_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	OffsetDays  int       `gorm:"not null;default:0" json:"offset_days"`
	IsRecurring bool      `gorm:"not null;default:false" json:"is_recurring"`
	IsCritical  bool      `gorm:"not null;default:false" json:"is_critical"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Template *Template `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
}
