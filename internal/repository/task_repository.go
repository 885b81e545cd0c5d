package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.ProjectTask) error {
	return r.db.Omit(clause.Associations).Create(task).Error
}

// CreateIfAbsent leans on idx_project_tasks_origin: a conflicting insert is a no-op
// and reports created = false.
func (r *GormTaskRepository) CreateIfAbsent(task *models.ProjectTask) (bool, error) {
	result := r.db.
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "template_task_id"}, {Name: "project_role_id"}},
			DoNothing: true,
		}).
		Create(task)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.ProjectTask, error) {
	var task models.ProjectTask
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.ProjectTask, int64, error) {
	query := r.db.Model(&models.ProjectTask{})

	if filter.ProjectID != nil {
		query = query.Where("project_tasks.project_id = ?", *filter.ProjectID)
	}
	if filter.ProjectRoleID != nil {
		query = query.Where("project_tasks.project_role_id = ?", *filter.ProjectRoleID)
	}
	if filter.Status != nil {
		query = query.Where("project_tasks.status = ?", *filter.Status)
	}
	if filter.AssigneeUserID != nil {
		assigneeSubQuery := r.db.Model(&models.ProjectRole{}).
			Select("1").
			Where("project_roles.id = project_tasks.project_role_id").
			Where("project_roles.user_id = ?", *filter.AssigneeUserID)
		query = query.Where("EXISTS (?)", assigneeSubQuery)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.ProjectTask
	if err := query.
		Preload("Project").
		Preload("ProjectRole.Role").
		Preload("ProjectRole.User").
		Preload("TemplateTask").
		Order("project_tasks.due_date ASC, project_tasks.id ASC").
		Scopes(Paginate(filter.Page, filter.PageSize)).
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// ListByAssignee orders by due date, newest first within a day
func (r *GormTaskRepository) ListByAssignee(userID uint64) ([]models.ProjectTask, error) {
	var tasks []models.ProjectTask
	err := r.db.
		Joins("JOIN project_roles ON project_roles.id = project_tasks.project_role_id").
		Where("project_roles.user_id = ?", userID).
		Preload("Project").
		Preload("ProjectRole.Role").
		Preload("TemplateTask").
		Order("project_tasks.due_date ASC, project_tasks.created_at DESC, project_tasks.id DESC").
		Find(&tasks).Error
	return tasks, err
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.ProjectTask) error {
	return r.db.Omit(clause.Associations).Save(task).Error
}

// Delete removes a task with its attachment rows
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskAttachment{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.ProjectTask{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
