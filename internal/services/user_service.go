package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/utils"
)

// UserService administers the identity store.
type UserService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(repos *repository.Repositories, logger *zap.Logger) *UserService {
	return &UserService{repos: repos, logger: logging.OrNop(logger)}
}

// ListUsers lists users for the assignment picker and the admin screen.
func (s *UserService) ListUsers(p policy.Principal, filter repository.UserFilter) ([]models.User, error) {
	if err := policy.Authorize(p, policy.ViewUsers, policy.Resource{}); err != nil {
		return nil, err
	}
	users, err := s.repos.Users.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUser returns one user. Everybody may read their own record.
func (s *UserService) GetUser(p policy.Principal, id uint64) (*models.User, error) {
	if p.ID != id {
		if err := policy.Authorize(p, policy.ViewUsers, policy.Resource{TargetUserID: id}); err != nil {
			return nil, err
		}
	}
	return s.findUser(id)
}

func (s *UserService) findUser(id uint64) (*models.User, error) {
	user, err := s.repos.Users.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateUserInput represents input for creating a user as an administrator
type CreateUserInput struct {
	Username   string
	Email      string
	Password   string
	FirstName  *string
	LastName   *string
	SystemRole models.SystemRole
	JobRoleID  *uint64
}

func (s *UserService) CreateUser(p policy.Principal, input CreateUserInput) (*models.User, error) {
	if err := policy.Authorize(p, policy.ManageUsers, policy.Resource{}); err != nil {
		return nil, err
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" || input.Password == "" {
		return nil, newError(ErrValidation, "Username, email, and password are required")
	}
	if len(input.Password) < constants.MinAdminPasswordLength {
		return nil, passwordTooShort(constants.MinAdminPasswordLength)
	}
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}

	role := input.SystemRole
	if role == "" {
		role = models.SystemRoleUser
	}
	if !role.Valid() {
		return nil, validationf("Invalid system role %q", role)
	}
	if err := s.checkJobRole(input.JobRoleID); err != nil {
		return nil, err
	}

	if _, err := s.repos.Users.FindConflict(username, email, 0); err == nil {
		return nil, ErrUserExists
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		FirstName:    trimmedOrNil(input.FirstName),
		LastName:     trimmedOrNil(input.LastName),
		SystemRole:   role,
		JobRoleID:    input.JobRoleID,
		IsActive:     true,
	}
	if err := s.repos.Users.Create(user); err != nil {
		if isDuplicate(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", zap.Uint64("user_id", user.ID), zap.String("by", p.Username))
	return s.findUser(user.ID)
}

// UpdateUserInput represents a partial update. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username     *string
	Email        *string
	Password     *string
	FirstName    *string
	LastName     *string
	SystemRole   *models.SystemRole
	JobRoleID    *uint64
	ClearJobRole bool
	IsActive     *bool
}

func (s *UserService) UpdateUser(p policy.Principal, id uint64, input UpdateUserInput) (*models.User, error) {
	if err := policy.Authorize(p, policy.ManageUsers, policy.Resource{TargetUserID: id}); err != nil {
		return nil, err
	}

	user, err := s.findUser(id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*input.Username))
		if username == "" {
			return nil, newError(ErrValidation, "Username cannot be empty")
		}
		user.Username = username
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if !validEmail(email) {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}
	if input.Username != nil || input.Email != nil {
		if _, err := s.repos.Users.FindConflict(user.Username, user.Email, user.ID); err == nil {
			return nil, ErrUserExists
		} else if !isNotFound(err) {
			return nil, fmt.Errorf("failed to check existing user: %w", err)
		}
	}
	if input.Password != nil && *input.Password != "" {
		if len(*input.Password) < constants.MinAdminPasswordLength {
			return nil, passwordTooShort(constants.MinAdminPasswordLength)
		}
		hashed, err := hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hashed
	}
	if input.FirstName != nil {
		user.FirstName = trimmedOrNil(input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = trimmedOrNil(input.LastName)
	}
	if input.SystemRole != nil {
		if !input.SystemRole.Valid() {
			return nil, validationf("Invalid system role %q", *input.SystemRole)
		}
		user.SystemRole = *input.SystemRole
	}
	if input.ClearJobRole {
		user.JobRoleID = nil
	} else if input.JobRoleID != nil {
		if err := s.checkJobRole(input.JobRoleID); err != nil {
			return nil, err
		}
		user.JobRoleID = input.JobRoleID
	}
	if input.IsActive != nil {
		if !*input.IsActive && user.ID == p.ID {
			return nil, ErrCannotDeactivate
		}
		user.IsActive = *input.IsActive
	}
	user.JobRole = nil

	if err := s.repos.Users.Update(user); err != nil {
		if isDuplicate(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if !user.IsActive {
		s.revokeSessions(user.ID)
	}
	return s.findUser(user.ID)
}

// DeactivateUser is the soft delete: the row stays so historic assignments keep
// their user, but the account can no longer log in.
func (s *UserService) DeactivateUser(p policy.Principal, id uint64) error {
	if err := policy.Authorize(p, policy.ManageUsers, policy.Resource{TargetUserID: id}); err != nil {
		return err
	}
	if id == p.ID {
		return ErrCannotDeactivate
	}

	user, err := s.findUser(id)
	if err != nil {
		return err
	}
	user.IsActive = false
	user.JobRole = nil
	if err := s.repos.Users.Update(user); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	s.revokeSessions(user.ID)

	s.logger.Info("user deactivated", zap.Uint64("user_id", id), zap.String("by", p.Username))
	return nil
}

// ResetPasswordInput holds either an explicit password or a request for a random one.
type ResetPasswordInput struct {
	NewPassword    string
	GenerateRandom bool
}

// ResetPassword sets a new password. When GenerateRandom is set the generated
// password is returned so the administrator can hand it over.
func (s *UserService) ResetPassword(p policy.Principal, id uint64, input ResetPasswordInput) (string, error) {
	if err := policy.Authorize(p, policy.ResetPassword, policy.Resource{TargetUserID: id}); err != nil {
		return "", err
	}

	user, err := s.findUser(id)
	if err != nil {
		return "", err
	}

	password := input.NewPassword
	if input.GenerateRandom {
		password, err = utils.GeneratePassword(constants.GeneratedPasswordLength)
		if err != nil {
			return "", err
		}
	} else {
		if password == "" {
			return "", newError(ErrValidation, "New password is required or set generate_random to true")
		}
		if len(password) < constants.MinAdminPasswordLength {
			return "", passwordTooShort(constants.MinAdminPasswordLength)
		}
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return "", err
	}
	user.PasswordHash = hashed
	user.JobRole = nil
	if err := s.repos.Users.Update(user); err != nil {
		return "", fmt.Errorf("failed to reset password: %w", err)
	}
	s.revokeSessions(user.ID)

	s.logger.Info("password reset", zap.Uint64("user_id", id), zap.String("by", p.Username))
	if input.GenerateRandom {
		return password, nil
	}
	return "", nil
}

func (s *UserService) checkJobRole(roleID *uint64) error {
	if roleID == nil {
		return nil
	}
	if _, err := s.repos.Roles.FindByID(*roleID); err != nil {
		if isNotFound(err) {
			return newError(ErrValidation, "Invalid job role")
		}
		return fmt.Errorf("failed to find job role: %w", err)
	}
	return nil
}

func (s *UserService) revokeSessions(userID uint64) {
	if err := s.repos.Sessions.DeleteByUser(userID); err != nil {
		s.logger.Warn("failed to revoke sessions", zap.Uint64("user_id", userID), zap.Error(err))
	}
}

// trimmedOrNil trims v and maps empty strings to nil.
func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
