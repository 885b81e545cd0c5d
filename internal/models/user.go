package models

import "time"

type SystemRole string

const (
	SystemRoleUser    SystemRole = "USER"
	SystemRoleManager SystemRole = "MANAGER"
	SystemRoleAdmin   SystemRole = "ADMIN"
)

// Valid reports whether r is one of the known system roles.
func (r SystemRole) Valid() bool {
	switch r {
	case SystemRoleUser, SystemRoleManager, SystemRoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uint64     `gorm:"primarykey" json:"id"`
	Username     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	FirstName    *string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName     *string    `gorm:"type:varchar(100)" json:"last_name"`
	SystemRole   SystemRole `gorm:"type:varchar(20);not null;default:'USER'" json:"system_role"`
	JobRoleID    *uint64    `gorm:"index" json:"job_role_id"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	JobRole      *Role         `gorm:"foreignKey:JobRoleID;constraint:OnDelete:SET NULL" json:"job_role,omitempty"`
	ProjectRoles []ProjectRole `gorm:"foreignKey:UserID" json:"-"`
}
