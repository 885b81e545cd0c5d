package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yukikurage/rollout-ready-api/internal/database"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
)

func uint64Ptr(v uint64) *uint64 {
	return &v
}

type fixture struct {
	role         models.Role
	user         models.User
	template     models.Template
	project      models.Project
	assignment   models.ProjectRole
	templateTask models.TemplateTask
}

func seedFixture(t *testing.T, repos *repository.Repositories) fixture {
	t.Helper()

	f := fixture{}
	f.role = models.Role{Name: "Infra Lead"}
	require.NoError(t, repos.Roles.Create(&f.role))

	f.user = models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", SystemRole: models.SystemRoleUser, JobRoleID: &f.role.ID}
	require.NoError(t, repos.Users.Create(&f.user))

	f.template = models.Template{
		Name:       "Infra",
		RoleID:     f.role.ID,
		AutoAssign: true,
		TemplateTasks: []models.TemplateTask{
			{Description: "Provision servers", OffsetDays: -7, IsCritical: true},
		},
	}
	require.NoError(t, repos.Templates.Create(&f.template))
	f.templateTask = f.template.TemplateTasks[0]

	f.project = models.Project{Name: "Site A", StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repos.Projects.Create(&f.project))

	f.assignment = models.ProjectRole{ProjectID: f.project.ID, RoleID: f.role.ID, UserID: f.user.ID}
	require.NoError(t, repos.Projects.CreateAssignment(&f.assignment))
	return f
}

func generatedTask(f fixture) *models.ProjectTask {
	return &models.ProjectTask{
		ProjectID:      f.project.ID,
		TemplateTaskID: &f.templateTask.ID,
		ProjectRoleID:  f.assignment.ID,
		Description:    f.templateTask.Description,
		DueDate:        f.project.StartDate.AddDate(0, 0, f.templateTask.OffsetDays),
		Status:         models.TaskStatusTodo,
	}
}

func TestTaskRepository_CreateIfAbsent(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))
	f := seedFixture(t, repos)

	created, err := repos.Tasks.CreateIfAbsent(generatedTask(f))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.Tasks.CreateIfAbsent(generatedTask(f))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, int64(1), countTasks(t, repos, f.assignment.ID))

	// Manual tasks have no template task and never collide.
	for i := 0; i < 2; i++ {
		manual := &models.ProjectTask{ProjectID: f.project.ID, ProjectRoleID: f.assignment.ID, Description: "Manual", DueDate: f.project.StartDate}
		require.NoError(t, repos.Tasks.Create(manual))
	}
	assert.Equal(t, int64(3), countTasks(t, repos, f.assignment.ID))
}

func countTasks(t *testing.T, repos *repository.Repositories, projectRoleID uint64) int64 {
	t.Helper()
	var count int64
	require.NoError(t, repos.DB().Model(&models.ProjectTask{}).Where("project_role_id = ?", projectRoleID).Count(&count).Error)
	return count
}

func TestTemplateRepository_ReplaceKeepsTaskSnapshots(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))
	f := seedFixture(t, repos)

	task := generatedTask(f)
	require.NoError(t, repos.Tasks.Create(task))

	refs, err := repos.Templates.CountTaskReferences(f.template.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refs)

	f.template.Name = "Infra v2"
	err = repos.Templates.Replace(&f.template, []models.TemplateTask{
		{Description: "Rack hardware", OffsetDays: -3},
		{Description: "Smoke test", OffsetDays: 2},
	})
	require.NoError(t, err)

	reloaded, err := repos.Templates.FindByID(f.template.ID)
	require.NoError(t, err)
	assert.Equal(t, "Infra v2", reloaded.Name)
	require.Len(t, reloaded.TemplateTasks, 2)
	assert.Equal(t, "Rack hardware", reloaded.TemplateTasks[0].Description)

	kept, err := repos.Tasks.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Provision servers", kept.Description)
	assert.Nil(t, kept.TemplateTaskID)

	refs, err = repos.Templates.CountTaskReferences(f.template.ID)
	require.NoError(t, err)
	assert.Zero(t, refs)
}

func TestRoleRepository_DeleteCascadesCatalog(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))

	role := models.Role{Name: "Business Analyst"}
	require.NoError(t, repos.Roles.Create(&role))
	user := models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", JobRoleID: &role.ID}
	require.NoError(t, repos.Users.Create(&user))
	template := models.Template{Name: "BA", RoleID: role.ID, TemplateTasks: []models.TemplateTask{{Description: "Map processes"}}}
	require.NoError(t, repos.Templates.Create(&template))

	templates, projectRoles, err := repos.Roles.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), templates[role.ID])
	assert.Zero(t, projectRoles[role.ID])

	require.NoError(t, repos.Roles.Delete(role.ID))

	_, err = repos.Templates.FindByID(template.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	reloaded, err := repos.Users.FindByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.JobRoleID)

	assert.ErrorIs(t, repos.Roles.Delete(role.ID), gorm.ErrRecordNotFound)
}

func TestProjectRepository_DeleteAssignmentRemovesTasksAndAttachments(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))
	f := seedFixture(t, repos)

	task := generatedTask(f)
	require.NoError(t, repos.Tasks.Create(task))
	attachment := models.TaskAttachment{TaskID: task.ID, FileName: "task_1_a.pdf", OriginalName: "a.pdf", FileSize: 3, MimeType: "application/pdf", UploadedBy: "alice"}
	require.NoError(t, repos.Attachments.Create(&attachment))

	names, err := repos.Attachments.FileNamesByProjectRole(f.assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"task_1_a.pdf"}, names)

	require.NoError(t, repos.Projects.DeleteAssignment(f.assignment.ID))

	_, err = repos.Tasks.FindByID(task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repos.Attachments.FindByID(attachment.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	existing, err := repos.Attachments.ExistingFileNames([]string{"task_1_a.pdf"})
	require.NoError(t, err)
	assert.False(t, existing["task_1_a.pdf"])
}

func TestTaskRepository_ListFilters(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))
	f := seedFixture(t, repos)

	require.NoError(t, repos.Tasks.Create(generatedTask(f)))
	done := &models.ProjectTask{ProjectID: f.project.ID, ProjectRoleID: f.assignment.ID, Description: "Closed", DueDate: f.project.StartDate, Status: models.TaskStatusDone}
	require.NoError(t, repos.Tasks.Create(done))

	status := models.TaskStatusDone
	tasks, total, err := repos.Tasks.List(repository.TaskFilter{AssigneeUserID: &f.user.ID, Status: &status, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Closed", tasks[0].Description)
	require.NotNil(t, tasks[0].ProjectRole)
	assert.Equal(t, "alice", tasks[0].ProjectRole.User.Username)

	tasks, total, err = repos.Tasks.List(repository.TaskFilter{AssigneeUserID: uint64Ptr(f.user.ID + 100)})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, tasks)

	mine, err := repos.Tasks.ListByAssignee(f.user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Provision servers", mine[0].Description)
}

func TestRepositories_TransactionRollsBack(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))

	err := repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.Roles.Create(&models.Role{Name: "Temporary"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = repos.Roles.FindByName("Temporary", 0)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRoleRepository_DuplicateNameIsTranslated(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))

	require.NoError(t, repos.Roles.Create(&models.Role{Name: "Security Architect"}))
	err := repos.Roles.Create(&models.Role{Name: "Security Architect"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestRoleRepository_CountProjectRolesPropagatesDriverError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewRoleRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "project_roles" WHERE role_id = \$1`).
		WithArgs(5).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.CountProjectRoles(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_CreateIfAbsentUsesOnConflictDoNothing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "project_tasks" .*ON CONFLICT \("project_id","template_task_id","project_role_id"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	templateTaskID := uint64(3)
	created, err := repo.CreateIfAbsent(&models.ProjectTask{
		ProjectID:      1,
		TemplateTaskID: &templateTaskID,
		ProjectRoleID:  2,
		Description:    "Provision servers",
		DueDate:        time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC),
		Status:         models.TaskStatusTodo,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
