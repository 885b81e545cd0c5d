package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"

	"github.com/yukikurage/rollout-ready-api/internal/config"
	"github.com/yukikurage/rollout-ready-api/internal/models"
)

func TestMigrate_CreatesTablesAndIndexes(t *testing.T) {
	db := OpenTestDB(t)

	for _, model := range Models() {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&models.ProjectTask{}, "idx_project_tasks_origin"))
	assert.True(t, db.Migrator().HasIndex(&models.ProjectTask{}, "idx_project_tasks_role_status"))

	// Running again is a no-op.
	require.NoError(t, Migrate(db, nil))
	require.NoError(t, Ping(db))
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(config.DBConfig{Driver: driver, Path: "x.db"})
		require.NoError(t, err)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(config.DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestGormLogger_WritesThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := gormLogger(zap.New(core), "info")

	l.Info(context.Background(), "hidden %s", "statement")
	l.Warn(context.Background(), "slow query on %s", "project_tasks")

	entries := logs.FilterLoggerName("gorm").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "slow query on project_tasks")

	debug := gormLogger(zap.New(core), "debug")
	debug.Info(context.Background(), "select %d", 1)
	assert.Equal(t, 2, logs.FilterLoggerName("gorm").Len())

	assert.NotNil(t, gormLogger(nil, "info").LogMode(logger.Silent))
}
