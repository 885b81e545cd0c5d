package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
)

// TaskSuggester drafts template tasks from free text.
type TaskSuggester interface {
	SuggestTemplateTasks(ctx context.Context, req SuggestRequest) ([]SuggestedTask, error)
}

// TemplateService manages templates and their task blueprints.
type TemplateService struct {
	repos     *repository.Repositories
	suggester TaskSuggester
	logger    *zap.Logger
}

// NewTemplateService creates a new TemplateService. suggester may be nil.
func NewTemplateService(repos *repository.Repositories, suggester TaskSuggester, logger *zap.Logger) *TemplateService {
	return &TemplateService{repos: repos, suggester: suggester, logger: logging.OrNop(logger)}
}

// TemplateTaskInput is one blueprint row of a template form.
type TemplateTaskInput struct {
	Description string
	OffsetDays  int
	IsRecurring bool
	IsCritical  bool
}

// TemplateInput represents input for creating or replacing a template
type TemplateInput struct {
	Name        string
	Description *string
	RoleID      uint64
	AutoAssign  bool
	Tasks       []TemplateTaskInput
}

func (s *TemplateService) ListTemplates(p policy.Principal, filter repository.TemplateFilter) ([]models.Template, error) {
	if err := policy.Authorize(p, policy.ViewCatalog, policy.Resource{}); err != nil {
		return nil, err
	}
	templates, err := s.repos.Templates.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

func (s *TemplateService) GetTemplate(p policy.Principal, id uint64) (*models.Template, error) {
	if err := policy.Authorize(p, policy.ViewCatalog, policy.Resource{}); err != nil {
		return nil, err
	}
	return findTemplate(s.repos, id)
}

func findTemplate(repos *repository.Repositories, id uint64) (*models.Template, error) {
	template, err := repos.Templates.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return template, nil
}

func (s *TemplateService) CreateTemplate(p policy.Principal, input TemplateInput) (*models.Template, error) {
	if err := policy.Authorize(p, policy.ManageCatalog, policy.Resource{}); err != nil {
		return nil, err
	}

	name, tasks, err := s.validateInput(s.repos, input)
	if err != nil {
		return nil, err
	}

	template := &models.Template{
		Name:          name,
		Description:   trimmedOrNil(input.Description),
		RoleID:        input.RoleID,
		AutoAssign:    input.AutoAssign,
		TemplateTasks: tasks,
	}
	if err := s.repos.Templates.Create(template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return findTemplate(s.repos, template.ID)
}

// UpdateTemplate replaces the template and its whole task list in one
// transaction. Task IDs are not preserved.
func (s *TemplateService) UpdateTemplate(p policy.Principal, id uint64, input TemplateInput) (*models.Template, error) {
	if err := policy.Authorize(p, policy.ManageCatalog, policy.Resource{}); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(func(tx *repository.Repositories) error {
		template, err := findTemplate(tx, id)
		if err != nil {
			return err
		}

		name, tasks, err := s.validateInput(tx, input)
		if err != nil {
			return err
		}

		template.Name = name
		template.Description = trimmedOrNil(input.Description)
		template.RoleID = input.RoleID
		template.AutoAssign = input.AutoAssign

		if err := tx.Templates.Replace(template, tasks); err != nil {
			return fmt.Errorf("failed to replace template: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findTemplate(s.repos, id)
}

// DeleteTemplate refuses while any project task was generated from it.
func (s *TemplateService) DeleteTemplate(p policy.Principal, id uint64) error {
	if err := policy.Authorize(p, policy.ManageCatalog, policy.Resource{}); err != nil {
		return err
	}

	return s.repos.Transaction(func(tx *repository.Repositories) error {
		if _, err := findTemplate(tx, id); err != nil {
			return err
		}

		refs, err := tx.Templates.CountTaskReferences(id)
		if err != nil {
			return fmt.Errorf("failed to count template usage: %w", err)
		}
		if refs > 0 {
			return ErrTemplateInUse
		}

		if err := tx.Templates.Delete(id); err != nil {
			if isForeignKey(err) {
				return ErrTemplateInUse
			}
			return fmt.Errorf("failed to delete template: %w", err)
		}
		return nil
	})
}

func (s *TemplateService) validateInput(repos *repository.Repositories, input TemplateInput) (string, []models.TemplateTask, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.RoleID == 0 {
		return "", nil, newError(ErrValidation, "Template name and role are required")
	}
	if _, err := repos.Roles.FindByID(input.RoleID); err != nil {
		if isNotFound(err) {
			return "", nil, validationf("Role with ID %d does not exist", input.RoleID)
		}
		return "", nil, fmt.Errorf("failed to find role: %w", err)
	}

	tasks := make([]models.TemplateTask, 0, len(input.Tasks))
	for i, t := range input.Tasks {
		description := strings.TrimSpace(t.Description)
		if description == "" {
			return "", nil, validationf("Task %d: description is required", i+1)
		}
		tasks = append(tasks, models.TemplateTask{
			Description: description,
			OffsetDays:  t.OffsetDays,
			IsRecurring: t.IsRecurring,
			IsCritical:  t.IsCritical,
		})
	}
	return name, tasks, nil
}

// SuggestTasksInput asks for drafted template tasks.
type SuggestTasksInput struct {
	RoleID   *uint64
	Text     string
	MaxTasks int
}

// SuggestTasks drafts template tasks from a plan written in prose. Nothing is saved.
func (s *TemplateService) SuggestTasks(ctx context.Context, p policy.Principal, input SuggestTasksInput) ([]SuggestedTask, error) {
	if err := policy.Authorize(p, policy.SuggestTasks, policy.Resource{}); err != nil {
		return nil, err
	}
	if s.suggester == nil {
		return nil, ErrAIServiceNotConfigured
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, newError(ErrValidation, "Text is required")
	}

	maxTasks := input.MaxTasks
	if maxTasks <= 0 {
		maxTasks = constants.DefaultSuggestedTasks
	}
	if maxTasks > constants.MaxSuggestedTasks {
		maxTasks = constants.MaxSuggestedTasks
	}

	req := SuggestRequest{Text: text, MaxTasks: maxTasks}
	if input.RoleID != nil {
		role, err := s.repos.Roles.FindByID(*input.RoleID)
		if err != nil {
			if isNotFound(err) {
				return nil, ErrRoleNotFound
			}
			return nil, fmt.Errorf("failed to find role: %w", err)
		}
		req.RoleName = role.Name
	}

	suggested, err := s.suggester.SuggestTemplateTasks(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest tasks: %w", err)
	}

	valid := make([]SuggestedTask, 0, len(suggested))
	for _, t := range suggested {
		t.Description = strings.TrimSpace(t.Description)
		if t.Description == "" {
			continue
		}
		valid = append(valid, t)
		if len(valid) == maxTasks {
			break
		}
	}
	if len(valid) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	return valid, nil
}
