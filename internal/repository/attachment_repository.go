package repository

import (
	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// GormAttachmentRepository is a GORM implementation of AttachmentRepository
type GormAttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &GormAttachmentRepository{db: db}
}

func (r *GormAttachmentRepository) Create(attachment *models.TaskAttachment) error {
	return r.db.Omit("Task").Create(attachment).Error
}

func (r *GormAttachmentRepository) FindByID(id uint64) (*models.TaskAttachment, error) {
	var attachment models.TaskAttachment
	if err := r.db.First(&attachment, id).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *GormAttachmentRepository) ListByTask(taskID uint64) ([]models.TaskAttachment, error) {
	var attachments []models.TaskAttachment
	err := r.db.Where("task_id = ?", taskID).
		Order("created_at DESC, id DESC").
		Find(&attachments).Error
	return attachments, err
}

func (r *GormAttachmentRepository) FileNamesByProject(projectID uint64) ([]string, error) {
	var names []string
	taskIDs := r.db.Model(&models.ProjectTask{}).Select("id").Where("project_id = ?", projectID)
	err := r.db.Model(&models.TaskAttachment{}).
		Where("task_id IN (?)", taskIDs).
		Pluck("file_name", &names).Error
	return names, err
}

func (r *GormAttachmentRepository) FileNamesByProjectRole(projectRoleID uint64) ([]string, error) {
	var names []string
	taskIDs := r.db.Model(&models.ProjectTask{}).Select("id").Where("project_role_id = ?", projectRoleID)
	err := r.db.Model(&models.TaskAttachment{}).
		Where("task_id IN (?)", taskIDs).
		Pluck("file_name", &names).Error
	return names, err
}

func (r *GormAttachmentRepository) FileNamesByTask(taskID uint64) ([]string, error) {
	var names []string
	err := r.db.Model(&models.TaskAttachment{}).
		Where("task_id = ?", taskID).
		Pluck("file_name", &names).Error
	return names, err
}

func (r *GormAttachmentRepository) ExistingFileNames(names []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(names))
	if len(names) == 0 {
		return existing, nil
	}

	var found []string
	if err := r.db.Model(&models.TaskAttachment{}).
		Where("file_name IN ?", names).
		Pluck("file_name", &found).Error; err != nil {
		return nil, err
	}
	for _, name := range found {
		existing[name] = true
	}
	return existing, nil
}

func (r *GormAttachmentRepository) Delete(id uint64) error {
	result := r.db.Delete(&models.TaskAttachment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
