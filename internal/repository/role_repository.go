package repository

import (
	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// GormRoleRepository is a GORM implementation of RoleRepository
type GormRoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new RoleRepository
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &GormRoleRepository{db: db}
}

func (r *GormRoleRepository) Create(role *models.Role) error {
	return r.db.Omit("Templates", "ProjectRoles").Create(role).Error
}

func (r *GormRoleRepository) FindByID(id uint64) (*models.Role, error) {
	var role models.Role
	if err := r.db.First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) FindByName(name string, excludeID uint64) (*models.Role, error) {
	var role models.Role
	query := r.db.Where("name = ?", name)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) List() ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

type roleCount struct {
	RoleID uint64
	Count  int64
}

func (r *GormRoleRepository) Counts() (map[uint64]int64, map[uint64]int64, error) {
	var templateRows, projectRoleRows []roleCount

	if err := r.db.Model(&models.Template{}).
		Select("role_id, COUNT(*) AS count").
		Group("role_id").
		Scan(&templateRows).Error; err != nil {
		return nil, nil, err
	}
	if err := r.db.Model(&models.ProjectRole{}).
		Select("role_id, COUNT(*) AS count").
		Group("role_id").
		Scan(&projectRoleRows).Error; err != nil {
		return nil, nil, err
	}

	return toCountMap(templateRows), toCountMap(projectRoleRows), nil
}

func toCountMap(rows []roleCount) map[uint64]int64 {
	counts := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		counts[row.RoleID] = row.Count
	}
	return counts
}

func (r *GormRoleRepository) Update(role *models.Role) error {
	return r.db.Omit("Templates", "ProjectRoles").Save(role).Error
}

func (r *GormRoleRepository) CountProjectRoles(roleID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.ProjectRole{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}

// Delete removes the role and everything in the catalog that hangs off it.
// Callers check CountProjectRoles first; assignments are not touched here.
func (r *GormRoleRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		templateIDs := tx.Model(&models.Template{}).Select("id").Where("role_id = ?", id)
		templateTaskIDs := tx.Model(&models.TemplateTask{}).Select("id").Where("template_id IN (?)", templateIDs)

		if err := tx.Model(&models.ProjectTask{}).
			Where("template_task_id IN (?)", templateTaskIDs).
			Update("template_task_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id IN (?)", templateIDs).Delete(&models.TemplateTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.Template{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("job_role_id = ?", id).Update("job_role_id", nil).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Role{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormRoleRepository) CountByIDs(ids []uint64) (int64, error) {
	var count int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := r.db.Model(&models.Role{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

func (r *GormRoleRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Role{}).Count(&count).Error
	return count, err
}
