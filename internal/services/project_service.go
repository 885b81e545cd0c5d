package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/storage"
)

// ProjectService manages projects and their role assignments and drives the
// task generator.
type ProjectService struct {
	repos     *repository.Repositories
	generator *TaskGenerator
	store     storage.FileStore
	logger    *zap.Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(repos *repository.Repositories, generator *TaskGenerator, store storage.FileStore, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		repos:     repos,
		generator: generator,
		store:     store,
		logger:    logging.OrNop(logger),
	}
}

// ProjectResult is a project with its assignments loaded.
type ProjectResult struct {
	Project        *models.Project
	TaskCount      int64
	GeneratedTasks int
}

// CreateProjectInput represents input for creating a project.
// RoleAssignments maps role IDs (as strings) to an optional user ID.
type CreateProjectInput struct {
	Name            string
	Description     *string
	StartDate       string
	RoleAssignments map[string]*uint64
}

// UpdateProjectInput represents a partial project update. A nil map leaves the
// assignments alone; a nil user ID inside the map clears that role.
type UpdateProjectInput struct {
	Name            *string
	Description     *string
	StartDate       *string
	RoleAssignments map[string]*uint64
}

type roleAssignment struct {
	roleID uint64
	userID *uint64
}

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns midnight UTC of the
// calendar date as written.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, validationf("Invalid date %q, expected YYYY-MM-DD", value)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func parseAssignments(raw map[string]*uint64) ([]roleAssignment, error) {
	assignments := make([]roleAssignment, 0, len(raw))
	for key, userID := range raw {
		roleID, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil || roleID == 0 {
			return nil, validationf("Invalid role ID %q", key)
		}
		if userID != nil && *userID == 0 {
			userID = nil
		}
		assignments = append(assignments, roleAssignment{roleID: roleID, userID: userID})
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].roleID < assignments[j].roleID })
	return assignments, nil
}

func checkAssignmentRefs(tx *repository.Repositories, assignments []roleAssignment) error {
	roleIDs := make([]uint64, 0, len(assignments))
	for _, a := range assignments {
		roleIDs = append(roleIDs, a.roleID)
	}
	count, err := tx.Roles.CountByIDs(roleIDs)
	if err != nil {
		return fmt.Errorf("failed to check roles: %w", err)
	}
	if count != int64(len(roleIDs)) {
		return newError(ErrValidation, "One or more roles do not exist")
	}

	for _, a := range assignments {
		if a.userID == nil {
			continue
		}
		if _, err := tx.Users.FindByID(*a.userID); err != nil {
			if isNotFound(err) {
				return validationf("User with ID %d not found", *a.userID)
			}
			return fmt.Errorf("failed to check user: %w", err)
		}
	}
	return nil
}

func (s *ProjectService) ListProjects(p policy.Principal, page, pageSize int) ([]ProjectResult, int64, error) {
	if err := policy.Authorize(p, policy.ViewProjects, policy.Resource{}); err != nil {
		return nil, 0, err
	}

	projects, total, err := s.repos.Projects.List(page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}

	ids := make([]uint64, 0, len(projects))
	for _, project := range projects {
		ids = append(ids, project.ID)
	}
	counts, err := s.repos.Projects.TaskCounts(ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	results := make([]ProjectResult, 0, len(projects))
	for i := range projects {
		results = append(results, ProjectResult{Project: &projects[i], TaskCount: counts[projects[i].ID]})
	}
	return results, total, nil
}

func (s *ProjectService) GetProject(p policy.Principal, id uint64) (*ProjectResult, error) {
	if err := policy.Authorize(p, policy.ViewProjects, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.loadProject(id)
}

func (s *ProjectService) loadProject(id uint64) (*ProjectResult, error) {
	project, err := s.repos.Projects.FindByID(id, "ProjectRoles.Role", "ProjectRoles.User")
	if err != nil {
		if isNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	counts, err := s.repos.Projects.TaskCounts([]uint64{id})
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	return &ProjectResult{Project: project, TaskCount: counts[id]}, nil
}

// CreateProject creates the project, its assignments and their generated tasks
// in one transaction. An unknown role or user leaves nothing behind.
func (s *ProjectService) CreateProject(p policy.Principal, input CreateProjectInput) (*ProjectResult, error) {
	if err := policy.Authorize(p, policy.ManageProjects, policy.Resource{}); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, newError(ErrValidation, "Project name is required")
	}
	if strings.TrimSpace(input.StartDate) == "" {
		return nil, newError(ErrValidation, "Start date is required")
	}
	startDate, err := ParseDate(input.StartDate)
	if err != nil {
		return nil, err
	}
	assignments, err := parseAssignments(input.RoleAssignments)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		Name:        name,
		Description: trimmedOrNil(input.Description),
		StartDate:   startDate,
	}
	generated := 0

	err = s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := checkAssignmentRefs(tx, assignments); err != nil {
			return err
		}
		if err := tx.Projects.Create(project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		created := make([]models.ProjectRole, 0, len(assignments))
		for _, a := range assignments {
			if a.userID == nil {
				continue
			}
			assignment := models.ProjectRole{ProjectID: project.ID, RoleID: a.roleID, UserID: *a.userID}
			if err := tx.Projects.CreateAssignment(&assignment); err != nil {
				return fmt.Errorf("failed to assign role %d: %w", a.roleID, err)
			}
			created = append(created, assignment)
		}

		generated, err = s.generator.Generate(tx, GenerateTasksInput{
			ProjectID:   project.ID,
			StartDate:   project.StartDate,
			Assignments: created,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.Uint64("project_id", project.ID),
		zap.Int("generated_tasks", generated),
		zap.String("by", p.Username),
	)

	result, err := s.loadProject(project.ID)
	if err != nil {
		return nil, err
	}
	result.GeneratedTasks = generated
	return result, nil
}

// UpdateProject edits project fields and assignments. A role whose user
// changes keeps its assignment row and tasks; a cleared role loses both.
// Generation runs again for every assigned role so new template tasks are
// picked up. Due dates of existing tasks never move.
func (s *ProjectService) UpdateProject(ctx context.Context, p policy.Principal, id uint64, input UpdateProjectInput) (*ProjectResult, error) {
	if err := policy.Authorize(p, policy.ManageProjects, policy.Resource{}); err != nil {
		return nil, err
	}

	var assignments []roleAssignment
	if input.RoleAssignments != nil {
		var err error
		if assignments, err = parseAssignments(input.RoleAssignments); err != nil {
			return nil, err
		}
	}

	var removedFiles []string
	generated := 0

	err := s.repos.Transaction(func(tx *repository.Repositories) error {
		project, err := tx.Projects.FindByID(id)
		if err != nil {
			if isNotFound(err) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("failed to find project: %w", err)
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return newError(ErrValidation, "Project name is required")
			}
			project.Name = name
		}
		if input.Description != nil {
			project.Description = trimmedOrNil(input.Description)
		}
		if input.StartDate != nil {
			startDate, err := ParseDate(*input.StartDate)
			if err != nil {
				return err
			}
			project.StartDate = startDate
		}
		if err := tx.Projects.Update(project); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		if len(assignments) == 0 {
			return nil
		}
		if err := checkAssignmentRefs(tx, assignments); err != nil {
			return err
		}

		confirmed := make([]models.ProjectRole, 0, len(assignments))
		for _, a := range assignments {
			existing, err := tx.Projects.FindAssignment(project.ID, a.roleID)
			if err != nil && !isNotFound(err) {
				return fmt.Errorf("failed to find assignment: %w", err)
			}

			switch {
			case a.userID == nil && existing != nil:
				names, err := tx.Attachments.FileNamesByProjectRole(existing.ID)
				if err != nil {
					return fmt.Errorf("failed to list attachments: %w", err)
				}
				if err := tx.Projects.DeleteAssignment(existing.ID); err != nil {
					return fmt.Errorf("failed to remove assignment: %w", err)
				}
				removedFiles = append(removedFiles, names...)
			case a.userID == nil:
				// Nothing assigned, nothing to clear.
			case existing != nil:
				if existing.UserID != *a.userID {
					existing.UserID = *a.userID
					if err := tx.Projects.UpdateAssignment(existing); err != nil {
						return fmt.Errorf("failed to reassign role %d: %w", a.roleID, err)
					}
				}
				confirmed = append(confirmed, *existing)
			default:
				assignment := models.ProjectRole{ProjectID: project.ID, RoleID: a.roleID, UserID: *a.userID}
				if err := tx.Projects.CreateAssignment(&assignment); err != nil {
					if isDuplicate(err) {
						return conflictf("Role %d is already assigned on this project", a.roleID)
					}
					return fmt.Errorf("failed to assign role %d: %w", a.roleID, err)
				}
				confirmed = append(confirmed, assignment)
			}
		}

		generated, err = s.generator.Generate(tx, GenerateTasksInput{
			ProjectID:   project.ID,
			StartDate:   project.StartDate,
			Assignments: confirmed,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.removeFiles(ctx, removedFiles)

	result, err := s.loadProject(id)
	if err != nil {
		return nil, err
	}
	result.GeneratedTasks = generated
	return result, nil
}

// DeleteProject removes the project with its assignments, tasks and attachments.
func (s *ProjectService) DeleteProject(ctx context.Context, p policy.Principal, id uint64) error {
	if err := policy.Authorize(p, policy.ManageProjects, policy.Resource{}); err != nil {
		return err
	}

	var files []string
	err := s.repos.Transaction(func(tx *repository.Repositories) error {
		if _, err := tx.Projects.FindByID(id); err != nil {
			if isNotFound(err) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("failed to find project: %w", err)
		}

		var err error
		if files, err = tx.Attachments.FileNamesByProject(id); err != nil {
			return fmt.Errorf("failed to list attachments: %w", err)
		}
		if err := tx.Projects.Delete(id); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, files)
	s.logger.Info("project deleted", zap.Uint64("project_id", id), zap.String("by", p.Username))
	return nil
}

// removeFiles deletes stored files after their metadata is gone. Failures are
// left to the orphan sweep.
func (s *ProjectService) removeFiles(ctx context.Context, names []string) {
	removeStoredFiles(ctx, s.store, s.logger, names)
}

func removeStoredFiles(ctx context.Context, store storage.FileStore, logger *zap.Logger, names []string) {
	if store == nil {
		return
	}
	for _, name := range names {
		if err := store.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("failed to delete stored file", zap.String("file", name), zap.Error(err))
		}
	}
}
