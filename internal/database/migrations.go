package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// compositeIndexes backs the list and dashboard queries. Single column and unique
// indexes live on the model tags.
var compositeIndexes = []struct {
	model   interface{}
	table   string
	name    string
	columns string
}{
	{&models.ProjectTask{}, "project_tasks", "idx_project_tasks_role_status", "project_role_id, status"},
	{&models.ProjectTask{}, "project_tasks", "idx_project_tasks_project_due", "project_id, due_date"},
	{&models.TaskAttachment{}, "task_attachments", "idx_task_attachments_task_created", "task_id, created_at"},
	{&models.Session{}, "sessions", "idx_sessions_user_expires", "user_id, expires_at"},
}

// AddIndexes creates the composite indexes that do not exist yet.
func AddIndexes(db *gorm.DB, log *zap.Logger) error {
	for _, idx := range compositeIndexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		if log != nil {
			log.Info("created index", zap.String("index", idx.name), zap.String("table", idx.table))
		}
	}
	return nil
}
