package repository

import (
	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

func (r *GormProjectRepository) Create(project *models.Project) error {
	return r.db.Omit("ProjectRoles", "ProjectTasks").Create(project).Error
}

func (r *GormProjectRepository) FindByID(id uint64, preload ...string) (*models.Project, error) {
	var project models.Project
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *GormProjectRepository) List(page, pageSize int) ([]models.Project, int64, error) {
	var total int64
	if err := r.db.Model(&models.Project{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []models.Project
	if err := r.db.
		Preload("ProjectRoles.Role").
		Preload("ProjectRoles.User").
		Order("created_at DESC, id DESC").
		Scopes(Paginate(page, pageSize)).
		Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *GormProjectRepository) Update(project *models.Project) error {
	return r.db.Omit("ProjectRoles", "ProjectTasks").Save(project).Error
}

func (r *GormProjectRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.ProjectTask{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.TaskAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectRole{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Project{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

type projectCount struct {
	ProjectID uint64
	Count     int64
}

func (r *GormProjectRepository) TaskCounts(projectIDs []uint64) (map[uint64]int64, error) {
	counts := make(map[uint64]int64, len(projectIDs))
	if len(projectIDs) == 0 {
		return counts, nil
	}

	var rows []projectCount
	if err := r.db.Model(&models.ProjectTask{}).
		Select("project_id, COUNT(*) AS count").
		Where("project_id IN ?", projectIDs).
		Group("project_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ProjectID] = row.Count
	}
	return counts, nil
}

func (r *GormProjectRepository) FindAssignment(projectID, roleID uint64) (*models.ProjectRole, error) {
	var assignment models.ProjectRole
	if err := r.db.Where("project_id = ? AND role_id = ?", projectID, roleID).
		First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *GormProjectRepository) FindAssignmentByID(id uint64) (*models.ProjectRole, error) {
	var assignment models.ProjectRole
	if err := r.db.First(&assignment, id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *GormProjectRepository) CreateAssignment(assignment *models.ProjectRole) error {
	return r.db.Omit("Project", "Role", "User", "Tasks").Create(assignment).Error
}

func (r *GormProjectRepository) UpdateAssignment(assignment *models.ProjectRole) error {
	return r.db.Omit("Project", "Role", "User", "Tasks").Save(assignment).Error
}

func (r *GormProjectRepository) DeleteAssignment(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.ProjectTask{}).Select("id").Where("project_role_id = ?", id)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.TaskAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_role_id = ?", id).Delete(&models.ProjectTask{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ProjectRole{}, id).Error
	})
}

func (r *GormProjectRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Project{}).Count(&count).Error
	return count, err
}
