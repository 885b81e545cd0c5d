package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
)

// RoleService manages the named job functions of the catalog.
type RoleService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewRoleService creates a new RoleService
func NewRoleService(repos *repository.Repositories, logger *zap.Logger) *RoleService {
	return &RoleService{repos: repos, logger: logging.OrNop(logger)}
}

// RoleSummary is a role with its usage counts.
type RoleSummary struct {
	Role             models.Role
	TemplateCount    int64
	ProjectRoleCount int64
}

func (s *RoleService) ListRoles(p policy.Principal) ([]RoleSummary, error) {
	if err := policy.Authorize(p, policy.ViewCatalog, policy.Resource{}); err != nil {
		return nil, err
	}

	roles, err := s.repos.Roles.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	templateCounts, projectRoleCounts, err := s.repos.Roles.Counts()
	if err != nil {
		return nil, fmt.Errorf("failed to count role usage: %w", err)
	}

	summaries := make([]RoleSummary, 0, len(roles))
	for _, role := range roles {
		summaries = append(summaries, RoleSummary{
			Role:             role,
			TemplateCount:    templateCounts[role.ID],
			ProjectRoleCount: projectRoleCounts[role.ID],
		})
	}
	return summaries, nil
}

func (s *RoleService) GetRole(p policy.Principal, id uint64) (*models.Role, error) {
	if err := policy.Authorize(p, policy.ViewCatalog, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.findRole(id)
}

func (s *RoleService) findRole(id uint64) (*models.Role, error) {
	role, err := s.repos.Roles.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to find role: %w", err)
	}
	return role, nil
}

// RoleInput represents input for creating or updating a role
type RoleInput struct {
	Name        string
	Description *string
}

func (s *RoleService) CreateRole(p policy.Principal, input RoleInput) (*models.Role, error) {
	if err := policy.Authorize(p, policy.ManageCatalog, policy.Resource{}); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, newError(ErrValidation, "Role name is required")
	}
	if err := s.ensureNameFree(name, 0); err != nil {
		return nil, err
	}

	role := &models.Role{Name: name, Description: trimmedOrNil(input.Description)}
	if err := s.repos.Roles.Create(role); err != nil {
		if isDuplicate(err) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return role, nil
}

func (s *RoleService) UpdateRole(p policy.Principal, id uint64, input RoleInput) (*models.Role, error) {
	if err := policy.Authorize(p, policy.ManageCatalog, policy.Resource{}); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, newError(ErrValidation, "Role name is required")
	}

	role, err := s.findRole(id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(name, id); err != nil {
		return nil, err
	}

	role.Name = name
	role.Description = trimmedOrNil(input.Description)
	if err := s.repos.Roles.Update(role); err != nil {
		if isDuplicate(err) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	return role, nil
}

// DeleteRole refuses while any project assignment uses the role. Otherwise the
// role's templates go with it.
func (s *RoleService) DeleteRole(p policy.Principal, id uint64) error {
	if err := policy.Authorize(p, policy.ManageCatalog, policy.Resource{}); err != nil {
		return err
	}

	return s.repos.Transaction(func(tx *repository.Repositories) error {
		if _, err := tx.Roles.FindByID(id); err != nil {
			if isNotFound(err) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("failed to find role: %w", err)
		}

		inUse, err := tx.Roles.CountProjectRoles(id)
		if err != nil {
			return fmt.Errorf("failed to count project roles: %w", err)
		}
		if inUse > 0 {
			return ErrRoleInUse
		}

		if err := tx.Roles.Delete(id); err != nil {
			if isForeignKey(err) {
				return ErrRoleInUse
			}
			return fmt.Errorf("failed to delete role: %w", err)
		}
		s.logger.Info("role deleted", zap.Uint64("role_id", id), zap.String("by", p.Username))
		return nil
	})
}

func (s *RoleService) ensureNameFree(name string, excludeID uint64) error {
	if _, err := s.repos.Roles.FindByName(name, excludeID); err == nil {
		return ErrRoleNameTaken
	} else if !isNotFound(err) {
		return fmt.Errorf("failed to check role name: %w", err)
	}
	return nil
}
