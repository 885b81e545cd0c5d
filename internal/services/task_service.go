package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/storage"
)

// TaskService handles the project task lifecycle
type TaskService struct {
	repos  *repository.Repositories
	store  storage.FileStore
	logger *zap.Logger
	now    func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(repos *repository.Repositories, store storage.FileStore, logger *zap.Logger) *TaskService {
	return &TaskService{
		repos:  repos,
		store:  store,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	ProjectID  *uint64
	AssigneeID *uint64
	Status     *models.TaskStatus
	Page       int
	PageSize   int
}

// CreateTaskInput represents input for a manually created task
type CreateTaskInput struct {
	ProjectRoleID uint64
	Description   string
	DueDate       string
}

// UpdateTaskInput represents input for updating a task. Nil fields are left
// unchanged; ClearCompletedAt wins over CompletedAt.
type UpdateTaskInput struct {
	Status           *models.TaskStatus
	Comments         *string
	TimeSpentMinutes *int
	CompletedAt      *time.Time
	ClearCompletedAt bool
}

// ListTasks returns tasks matching the filters. A USER only ever sees tasks
// they are assigned to, whatever assignee filter they pass.
func (s *TaskService) ListTasks(p policy.Principal, input ListTasksInput) ([]models.ProjectTask, int64, error) {
	filter := repository.TaskFilter{
		ProjectID:      input.ProjectID,
		AssigneeUserID: input.AssigneeID,
		Page:           input.Page,
		PageSize:       input.PageSize,
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, 0, ErrInvalidStatus
		}
		filter.Status = input.Status
	}

	if !policy.Can(p, policy.ViewAllTasks, policy.Resource{}) {
		if p.ID == 0 {
			return nil, 0, policy.ErrForbidden
		}
		self := p.ID
		filter.AssigneeUserID = &self
	}

	tasks, total, err := s.repos.Tasks.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetTask returns a task with its project, assignment, template task and attachments
func (s *TaskService) GetTask(p policy.Principal, id uint64) (*models.ProjectTask, error) {
	task, err := s.findTask(id,
		"Project",
		"ProjectRole.Role",
		"ProjectRole.User",
		"TemplateTask",
		"Attachments",
	)
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(p, policy.ViewTask, taskResource(task)); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateTask adds a manual task to an existing assignment of the project.
func (s *TaskService) CreateTask(p policy.Principal, projectID uint64, input CreateTaskInput) (*models.ProjectTask, error) {
	if err := policy.Authorize(p, policy.ManageProjects, policy.Resource{}); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, newError(ErrValidation, "Description is required")
	}
	if input.ProjectRoleID == 0 {
		return nil, newError(ErrValidation, "Project role is required")
	}
	if strings.TrimSpace(input.DueDate) == "" {
		return nil, newError(ErrValidation, "Due date is required")
	}
	dueDate, err := ParseDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	if _, err := s.repos.Projects.FindByID(projectID); err != nil {
		if isNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	assignment, err := s.repos.Projects.FindAssignmentByID(input.ProjectRoleID)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}
	if assignment == nil || assignment.ProjectID != projectID {
		return nil, validationf("Project role %d does not belong to project %d", input.ProjectRoleID, projectID)
	}

	task := &models.ProjectTask{
		ProjectID:     projectID,
		ProjectRoleID: assignment.ID,
		Description:   description,
		DueDate:       dueDate,
		Status:        models.TaskStatusTodo,
	}
	if err := s.repos.Tasks.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return s.findTask(task.ID, "Project", "ProjectRole.Role", "ProjectRole.User")
}

// UpdateTask applies a partial update. Moving to DONE stamps completedAt with
// the current time and moving away from DONE clears it, unless the caller
// supplies completedAt explicitly.
func (s *TaskService) UpdateTask(p policy.Principal, id uint64, input UpdateTaskInput) (*models.ProjectTask, error) {
	task, err := s.findTask(id, "ProjectRole")
	if err != nil {
		return nil, err
	}

	if err := policy.Authorize(p, policy.UpdateTask, taskResource(task)); err != nil {
		return nil, err
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		previous := task.Status
		task.Status = *input.Status

		switch {
		case task.Status == models.TaskStatusDone && (previous != models.TaskStatusDone || task.CompletedAt == nil):
			now := s.now().UTC()
			task.CompletedAt = &now
		case task.Status != models.TaskStatusDone:
			task.CompletedAt = nil
		}
	}

	if input.Comments != nil {
		task.Comments = trimmedOrNil(input.Comments)
	}

	if input.TimeSpentMinutes != nil {
		if *input.TimeSpentMinutes < 0 {
			return nil, newError(ErrValidation, "Time spent cannot be negative")
		}
		task.TimeSpentMinutes = *input.TimeSpentMinutes
	}

	if input.ClearCompletedAt {
		task.CompletedAt = nil
	} else if input.CompletedAt != nil {
		completedAt := input.CompletedAt.UTC()
		task.CompletedAt = &completedAt
	}

	if err := s.repos.Tasks.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.findTask(task.ID, "Project", "ProjectRole.Role", "ProjectRole.User", "TemplateTask")
}

// DeleteTask removes the task, its attachment rows and their stored files.
func (s *TaskService) DeleteTask(ctx context.Context, p policy.Principal, id uint64) error {
	if err := policy.Authorize(p, policy.DeleteTask, policy.Resource{}); err != nil {
		return err
	}

	var files []string
	err := s.repos.Transaction(func(tx *repository.Repositories) error {
		var err error
		if files, err = tx.Attachments.FileNamesByTask(id); err != nil {
			return fmt.Errorf("failed to list attachments: %w", err)
		}
		if err := tx.Tasks.Delete(id); err != nil {
			if isNotFound(err) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	removeStoredFiles(ctx, s.store, s.logger, files)
	s.logger.Info("task deleted", zap.Uint64("task_id", id), zap.String("by", p.Username))
	return nil
}

// ProjectTaskGroup holds the dashboard tasks of one role the user fills on a project.
type ProjectTaskGroup struct {
	Project models.Project
	Role    models.Role
	Tasks   []models.ProjectTask
}

// DashboardSummary counts a user's tasks.
type DashboardSummary struct {
	Total          int
	Todo           int
	InProgress     int
	Done           int
	Overdue        int
	Critical       int
	ActiveProjects int
}

// Dashboard is everything assigned to one user.
type Dashboard struct {
	User     *models.User
	Summary  DashboardSummary
	Projects []ProjectTaskGroup
	Tasks    []models.ProjectTask
}

// Dashboard lists the tasks assigned to username in due date order, grouped by
// project role. A task is overdue when it is not DONE and due before today (UTC).
func (s *TaskService) Dashboard(p policy.Principal, username string) (*Dashboard, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, newError(ErrValidation, "Username is required")
	}

	user, err := s.repos.Users.FindByUsername(username)
	if err != nil {
		if isNotFound(err) {
			return nil, notFoundf("User %q not found", username)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := policy.Authorize(p, policy.ViewDashboard, policy.Resource{TargetUserID: user.ID}); err != nil {
		return nil, err
	}

	tasks, err := s.repos.Tasks.ListByAssignee(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	dashboard := &Dashboard{User: user, Tasks: tasks, Projects: []ProjectTaskGroup{}}
	index := make(map[uint64]int)
	projects := make(map[uint64]struct{})
	for _, task := range tasks {
		dashboard.Summary.Total++
		switch task.Status {
		case models.TaskStatusTodo:
			dashboard.Summary.Todo++
		case models.TaskStatusInProgress:
			dashboard.Summary.InProgress++
		case models.TaskStatusDone:
			dashboard.Summary.Done++
		}
		if task.Status != models.TaskStatusDone {
			if task.DueDate.Before(today) {
				dashboard.Summary.Overdue++
			}
			if task.TemplateTask != nil && task.TemplateTask.IsCritical {
				dashboard.Summary.Critical++
			}
		}

		projects[task.ProjectID] = struct{}{}
		i, ok := index[task.ProjectRoleID]
		if !ok {
			group := ProjectTaskGroup{}
			if task.Project != nil {
				group.Project = *task.Project
			}
			if task.ProjectRole != nil {
				group.Role = task.ProjectRole.Role
			}
			dashboard.Projects = append(dashboard.Projects, group)
			i = len(dashboard.Projects) - 1
			index[task.ProjectRoleID] = i
		}
		dashboard.Projects[i].Tasks = append(dashboard.Projects[i].Tasks, task)
	}
	dashboard.Summary.ActiveProjects = len(projects)

	return dashboard, nil
}

func (s *TaskService) findTask(id uint64, preload ...string) (*models.ProjectTask, error) {
	task, err := s.repos.Tasks.FindByID(id, preload...)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// taskResource describes a task for the policy. The task must have its
// ProjectRole loaded.
func taskResource(task *models.ProjectTask) policy.Resource {
	if task.ProjectRole == nil {
		return policy.Resource{}
	}
	return policy.Resource{AssigneeID: task.ProjectRole.UserID}
}
