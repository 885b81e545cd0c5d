package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds. Every error a service returns on purpose unwraps to one of these
// (or to policy.ErrForbidden); anything else is an internal failure.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// domainError carries a caller facing message and its kind.
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }

func (e *domainError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

func validationf(format string, args ...interface{}) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...interface{}) error {
	return newError(ErrConflict, fmt.Sprintf(format, args...))
}

var (
	ErrInvalidCredentials = newError(ErrUnauthenticated, "Invalid credentials")
	ErrSessionInvalid     = newError(ErrUnauthenticated, "Session expired or invalid")

	ErrUserNotFound       = newError(ErrNotFound, "User not found")
	ErrRoleNotFound       = newError(ErrNotFound, "Role not found")
	ErrTemplateNotFound   = newError(ErrNotFound, "Template not found")
	ErrProjectNotFound    = newError(ErrNotFound, "Project not found")
	ErrTaskNotFound       = newError(ErrNotFound, "Task not found")
	ErrAttachmentNotFound = newError(ErrNotFound, "Attachment not found")
	ErrFileNotFound       = newError(ErrNotFound, "File not found on storage")

	ErrUserExists       = newError(ErrConflict, "User with this username or email already exists")
	ErrRoleNameTaken    = newError(ErrConflict, "Role with this name already exists")
	ErrRoleInUse        = newError(ErrConflict, "Cannot delete role that is assigned to projects")
	ErrTemplateInUse    = newError(ErrConflict, "Cannot delete template that has generated project tasks")
	ErrCannotDeactivate = newError(ErrConflict, "You cannot deactivate your own account")

	ErrPasswordMismatch = newError(ErrValidation, "Passwords do not match")
	ErrInvalidEmail     = newError(ErrValidation, "Invalid email format")
	ErrInvalidStatus    = newError(ErrValidation, "Invalid status. Must be TODO, IN_PROGRESS, or DONE")
	ErrFileTooLarge     = newError(ErrValidation, "File too large. Maximum size is 10MB")
	ErrFileTypeDenied   = newError(ErrValidation, "File type not allowed")
	ErrFileRequired     = newError(ErrValidation, "No file provided")

	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = newError(ErrValidation, "AI did not suggest any tasks")
)

func passwordTooShort(min int) error {
	return validationf("Password must be at least %d characters", min)
}

// isNotFound reports whether a repository error means the row does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate reports whether the database rejected a write on a unique index.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// isForeignKey reports whether the database rejected a dangling reference.
func isForeignKey(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated)
}
