package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/metrics"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
)

// TaskGenerator materializes auto-assign templates into project tasks.
type TaskGenerator struct {
	logger *zap.Logger
}

// NewTaskGenerator creates a new TaskGenerator
func NewTaskGenerator(logger *zap.Logger) *TaskGenerator {
	return &TaskGenerator{logger: logging.OrNop(logger)}
}

// GenerateTasksInput names the project and the assignments that were just
// created or confirmed.
type GenerateTasksInput struct {
	ProjectID   uint64
	StartDate   time.Time
	Assignments []models.ProjectRole
}

// DueDate is start plus offsetDays calendar days.
func DueDate(start time.Time, offsetDays int) time.Time {
	return start.AddDate(0, 0, offsetDays)
}

// Generate creates one task per template task of every auto-assign template of
// each assignment's role. Rows that already exist for (project, template task,
// project role) are skipped, so calling it again with the same input creates
// nothing. Run it inside the caller's transaction: the first error aborts and
// the caller rolls back.
func (g *TaskGenerator) Generate(tx *repository.Repositories, input GenerateTasksInput) (int, error) {
	created := 0
	for _, assignment := range input.Assignments {
		templates, err := tx.Templates.FindAutoAssign(assignment.RoleID)
		if err != nil {
			return created, fmt.Errorf("failed to find templates for role %d: %w", assignment.RoleID, err)
		}

		for _, template := range templates {
			for _, templateTask := range template.TemplateTasks {
				templateTaskID := templateTask.ID
				task := &models.ProjectTask{
					ProjectID:      input.ProjectID,
					TemplateTaskID: &templateTaskID,
					ProjectRoleID:  assignment.ID,
					Description:    templateTask.Description,
					DueDate:        DueDate(input.StartDate, templateTask.OffsetDays),
					Status:         models.TaskStatusTodo,
				}

				ok, err := tx.Tasks.CreateIfAbsent(task)
				if err != nil {
					return created, fmt.Errorf("failed to create task from template task %d: %w", templateTask.ID, err)
				}
				if ok {
					created++
				}
			}
		}
	}

	if created > 0 {
		metrics.TasksGeneratedTotal.Add(float64(created))
		g.logger.Info("generated project tasks",
			zap.Uint64("project_id", input.ProjectID),
			zap.Int("created", created),
			zap.Int("assignments", len(input.Assignments)),
		)
	}
	return created, nil
}
