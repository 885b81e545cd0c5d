// Package policy holds the single authorization decision used by every service.
package policy

import (
	"errors"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// ErrForbidden is returned when the principal may not perform the action.
var ErrForbidden = errors.New("insufficient permissions")

// Principal is the authenticated caller.
type Principal struct {
	ID         uint64
	Username   string
	SystemRole models.SystemRole
}

type Action string

const (
	ViewUsers        Action = "users.view"
	ManageUsers      Action = "users.manage"
	ResetPassword    Action = "users.reset_password"
	ViewCatalog      Action = "catalog.view"
	ManageCatalog    Action = "catalog.manage"
	ViewProjects     Action = "projects.view"
	ManageProjects   Action = "projects.manage"
	ViewTask         Action = "tasks.view"
	UpdateTask       Action = "tasks.update"
	DeleteTask       Action = "tasks.delete"
	UploadAttachment Action = "attachments.upload"
	DeleteAttachment Action = "attachments.delete"
	ViewDashboard    Action = "dashboard.view"
	ViewAllTasks     Action = "tasks.view_all"
	SuggestTasks     Action = "catalog.suggest"
)

// Resource describes the object an action touches. Zero fields are ignored.
type Resource struct {
	// AssigneeID is the user filling the project role a task belongs to.
	AssigneeID uint64
	// OwnerUsername is the uploader of an attachment.
	OwnerUsername string
	// TargetUserID is the user a dashboard or profile belongs to.
	TargetUserID uint64
}

// managerDenied lists what a MANAGER may not do. Administrators may do everything.
var managerDenied = map[Action]bool{
	ManageUsers:   true,
	ResetPassword: true,
	DeleteTask:    true,
}

// Authorize returns nil when p may perform action on res, ErrForbidden otherwise.
func Authorize(p Principal, action Action, res Resource) error {
	if allowed(p, action, res) {
		return nil
	}
	return ErrForbidden
}

// Can is Authorize as a boolean.
func Can(p Principal, action Action, res Resource) bool {
	return allowed(p, action, res)
}

func allowed(p Principal, action Action, res Resource) bool {
	if p.ID == 0 {
		return false
	}

	switch p.SystemRole {
	case models.SystemRoleAdmin:
		return true
	case models.SystemRoleManager:
		return !managerDenied[action]
	case models.SystemRoleUser:
		return userAllowed(p, action, res)
	default:
		return false
	}
}

func userAllowed(p Principal, action Action, res Resource) bool {
	switch action {
	case ViewCatalog, ViewProjects:
		return true
	case ViewTask, UpdateTask, UploadAttachment:
		return res.AssigneeID != 0 && res.AssigneeID == p.ID
	case DeleteAttachment:
		return res.OwnerUsername != "" && res.OwnerUsername == p.Username
	case ViewDashboard:
		return res.TargetUserID == p.ID
	default:
		return false
	}
}
