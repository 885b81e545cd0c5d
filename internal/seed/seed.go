// Package seed loads the demo accounts and catalog. Running it twice is safe:
// rows are matched by username, role name and template name and never updated.
package seed

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
)

// hashCost is lowered by tests.
var hashCost = constants.BcryptCost

type seedUser struct {
	username   string
	password   string
	firstName  string
	lastName   string
	systemRole models.SystemRole
}

var users = []seedUser{
	{"admin", "admin123", "System", "Administrator", models.SystemRoleAdmin},
	{"manager", "manager123", "Project", "Manager", models.SystemRoleManager},
	{"alice", "user123", "Alice", "Johnson", models.SystemRoleUser},
	{"bob", "user123", "Bob", "Smith", models.SystemRoleUser},
	{"charlie", "user123", "Charlie", "Brown", models.SystemRoleUser},
}

type seedRole struct {
	name        string
	description string
}

var roles = []seedRole{
	{"Project Manager", "Overall project coordination and management"},
	{"Infrastructure Lead", "Technical infrastructure setup and management"},
	{"Security Architect", "Security assessment and implementation"},
	{"Business Analyst", "Business requirements and process analysis"},
}

type seedTemplate struct {
	role        string
	name        string
	description string
	tasks       []models.TemplateTask
}

var templates = []seedTemplate{
	{
		role:        "Project Manager",
		name:        "Project Manager Checklist",
		description: "Standard tasks for project managers",
		tasks: []models.TemplateTask{
			{Description: "Create project charter and scope document", OffsetDays: -14, IsCritical: true},
			{Description: "Conduct stakeholder kickoff meeting", OffsetDays: -7, IsCritical: true},
			{Description: "Finalize project timeline and milestones", OffsetDays: 0, IsCritical: true},
			{Description: "Weekly status report to stakeholders", OffsetDays: 7, IsRecurring: true},
		},
	},
	{
		role:        "Infrastructure Lead",
		name:        "Infrastructure Setup Checklist",
		description: "Technical infrastructure preparation tasks",
		tasks: []models.TemplateTask{
			{Description: "Review current infrastructure architecture", OffsetDays: -21, IsCritical: true},
			{Description: "Prepare server environments (Dev/Test/Prod)", OffsetDays: -14, IsCritical: true},
			{Description: "Configure network and firewall rules", OffsetDays: -7, IsCritical: true},
			{Description: "Setup monitoring and alerting systems", OffsetDays: 0},
		},
	},
	{
		role:        "Security Architect",
		name:        "Security Assessment Checklist",
		description: "Security review and implementation tasks",
		tasks: []models.TemplateTask{
			{Description: "Conduct security risk assessment", OffsetDays: -21, IsCritical: true},
			{Description: "Review and approve security architecture", OffsetDays: -14, IsCritical: true},
			{Description: "Implement security controls and policies", OffsetDays: -7, IsCritical: true},
			{Description: "Conduct security testing and validation", OffsetDays: 7, IsCritical: true},
		},
	},
}

// Result counts what a run created.
type Result struct {
	Users     int
	Roles     int
	Templates int
}

// Run creates whatever demo rows are missing, in one transaction.
func Run(repos *repository.Repositories, logger *zap.Logger) (*Result, error) {
	logger = logging.OrNop(logger)
	result := &Result{}

	err := repos.Transaction(func(tx *repository.Repositories) error {
		for _, u := range users {
			created, err := ensureUser(tx, u)
			if err != nil {
				return err
			}
			if created {
				result.Users++
			}
		}

		roleIDs := make(map[string]uint64, len(roles))
		for _, r := range roles {
			role, created, err := ensureRole(tx, r)
			if err != nil {
				return err
			}
			roleIDs[r.name] = role.ID
			if created {
				result.Roles++
			}
		}

		for _, t := range templates {
			created, err := ensureTemplate(tx, roleIDs[t.role], t)
			if err != nil {
				return err
			}
			if created {
				result.Templates++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("seed complete",
		zap.Int("users", result.Users),
		zap.Int("roles", result.Roles),
		zap.Int("templates", result.Templates),
	)
	return result, nil
}

func ensureUser(tx *repository.Repositories, u seedUser) (bool, error) {
	if _, err := tx.Users.FindByUsername(u.username); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up user %s: %w", u.username, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(u.password), hashCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	firstName, lastName := u.firstName, u.lastName
	user := &models.User{
		Username:     u.username,
		Email:        u.username + "@rolloutready.com",
		PasswordHash: string(hashed),
		FirstName:    &firstName,
		LastName:     &lastName,
		SystemRole:   u.systemRole,
		IsActive:     true,
	}
	if err := tx.Users.Create(user); err != nil {
		return false, fmt.Errorf("failed to create user %s: %w", u.username, err)
	}
	return true, nil
}

func ensureRole(tx *repository.Repositories, r seedRole) (*models.Role, bool, error) {
	role, err := tx.Roles.FindByName(r.name, 0)
	if err == nil {
		return role, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up role %s: %w", r.name, err)
	}

	description := r.description
	role = &models.Role{Name: r.name, Description: &description}
	if err := tx.Roles.Create(role); err != nil {
		return nil, false, fmt.Errorf("failed to create role %s: %w", r.name, err)
	}
	return role, true, nil
}

func ensureTemplate(tx *repository.Repositories, roleID uint64, t seedTemplate) (bool, error) {
	existing, err := tx.Templates.List(repository.TemplateFilter{RoleID: &roleID})
	if err != nil {
		return false, fmt.Errorf("failed to list templates: %w", err)
	}
	for _, e := range existing {
		if e.Name == t.name {
			return false, nil
		}
	}

	description := t.description
	template := &models.Template{
		Name:          t.name,
		Description:   &description,
		RoleID:        roleID,
		AutoAssign:    true,
		TemplateTasks: append([]models.TemplateTask(nil), t.tasks...),
	}
	if err := tx.Templates.Create(template); err != nil {
		return false, fmt.Errorf("failed to create template %s: %w", t.name, err)
	}
	return true, nil
}
