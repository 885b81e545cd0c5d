package repository

import (
	"sort"

	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// GormTemplateRepository is a GORM implementation of TemplateRepository
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &GormTemplateRepository{db: db}
}

func orderedTasks(db *gorm.DB) *gorm.DB {
	return db.Order("offset_days ASC, id ASC")
}

// Create inserts the template and, through the association, its tasks
func (r *GormTemplateRepository) Create(template *models.Template) error {
	return r.db.Omit("Role").Create(template).Error
}

func (r *GormTemplateRepository) FindByID(id uint64) (*models.Template, error) {
	var template models.Template
	if err := r.db.
		Preload("Role").
		Preload("TemplateTasks", orderedTasks).
		First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// List orders by role name then template name
func (r *GormTemplateRepository) List(filter TemplateFilter) ([]models.Template, error) {
	query := r.db.Model(&models.Template{})
	if filter.RoleID != nil {
		query = query.Where("role_id = ?", *filter.RoleID)
	}

	var templates []models.Template
	if err := query.
		Preload("Role").
		Preload("TemplateTasks", orderedTasks).
		Order("name ASC").
		Find(&templates).Error; err != nil {
		return nil, err
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Role.Name < templates[j].Role.Name
	})
	return templates, nil
}

// Replace is delete-all-then-recreate for the task set. Project tasks keep their
// description snapshot; their link to a removed template task is cleared.
func (r *GormTemplateRepository) Replace(template *models.Template, tasks []models.TemplateTask) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(template).
			Updates(map[string]interface{}{
				"name":        template.Name,
				"description": template.Description,
				"role_id":     template.RoleID,
				"auto_assign": template.AutoAssign,
			}).Error; err != nil {
			return err
		}

		oldTaskIDs := tx.Model(&models.TemplateTask{}).Select("id").Where("template_id = ?", template.ID)
		if err := tx.Model(&models.ProjectTask{}).
			Where("template_task_id IN (?)", oldTaskIDs).
			Update("template_task_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", template.ID).Delete(&models.TemplateTask{}).Error; err != nil {
			return err
		}

		for i := range tasks {
			tasks[i].ID = 0
			tasks[i].TemplateID = template.ID
		}
		if len(tasks) > 0 {
			if err := tx.Create(&tasks).Error; err != nil {
				return err
			}
		}
		template.TemplateTasks = tasks
		return nil
	})
}

func (r *GormTemplateRepository) CountTaskReferences(templateID uint64) (int64, error) {
	var count int64
	taskIDs := r.db.Model(&models.TemplateTask{}).Select("id").Where("template_id = ?", templateID)
	err := r.db.Model(&models.ProjectTask{}).
		Where("template_task_id IN (?)", taskIDs).
		Count(&count).Error
	return count, err
}

func (r *GormTemplateRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&models.TemplateTask{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Template{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormTemplateRepository) FindAutoAssign(roleID uint64) ([]models.Template, error) {
	var templates []models.Template
	err := r.db.
		Where("role_id = ? AND auto_assign = ?", roleID, true).
		Preload("TemplateTasks", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id ASC").
		Find(&templates).Error
	return templates, err
}

func (r *GormTemplateRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Template{}).Count(&count).Error
	return count, err
}
