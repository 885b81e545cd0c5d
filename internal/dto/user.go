package dto

import (
	"time"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID         uint64            `json:"id"`
	Username   string            `json:"username"`
	Email      string            `json:"email"`
	FirstName  *string           `json:"first_name"`
	LastName   *string           `json:"last_name"`
	SystemRole models.SystemRole `json:"system_role"`
	JobRoleID  *uint64           `json:"job_role_id"`
	JobRole    *RoleRefDTO       `json:"job_role,omitempty"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// UserRefDTO is the short form used inside other resources
type UserRefDTO struct {
	ID        uint64  `json:"id"`
	Username  string  `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	dto := UserDTO{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		SystemRole: user.SystemRole,
		JobRoleID:  user.JobRoleID,
		IsActive:   user.IsActive,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}

	// Include job role if preloaded
	if user.JobRole != nil {
		ref := ToRoleRefDTO(*user.JobRole)
		dto.JobRole = &ref
	}
	return dto
}

// ToUserDTOs converts a slice of users
func ToUserDTOs(users []models.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, user := range users {
		dtos[i] = ToUserDTO(user)
	}
	return dtos
}

// ToUserRefDTO converts a User model to UserRefDTO
func ToUserRefDTO(user models.User) UserRefDTO {
	return UserRefDTO{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

// AuthResponse is returned by register and login. The token is also kept in
// the session cookie; API clients send it as a bearer token instead.
type AuthResponse struct {
	User      UserDTO   `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ToAuthResponse converts a user and its new session
func ToAuthResponse(user models.User, session models.Session) AuthResponse {
	return AuthResponse{
		User:      ToUserDTO(user),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}
}
