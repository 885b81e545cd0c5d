package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-02-01", "2024-02-01"},
		{" 2024-02-01 ", "2024-02-01"},
		{"2024-02-01T00:00:00Z", "2024-02-01"},
		{"2024-02-01T23:30:00+09:00", "2024-02-01"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.Format(dateLayout))
		assert.Equal(t, 0, got.Hour())
	}

	_, err := ParseDate("01/02/2024")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTaskGenerator_DueDatesAndIdempotence(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.SystemRoleUser)
	role := env.createRole(t, "Security Architect")
	env.createTemplate(t, role.ID, "Security", true,
		TemplateTaskInput{Description: "Threat model", OffsetDays: -14},
		TemplateTaskInput{Description: "Pen test", OffsetDays: 7},
	)
	env.createTemplate(t, role.ID, "Optional", false,
		TemplateTaskInput{Description: "Nice to have", OffsetDays: 0},
	)

	result := env.createProject(t, "Rollout", "2024-02-01", map[uint64]uint64{role.ID: user.ID})
	assert.Equal(t, 2, result.GeneratedTasks)
	assert.Equal(t, int64(2), result.TaskCount)

	due := map[string]string{}
	for _, task := range env.projectTasks(t, result.Project.ID) {
		due[task.Description] = task.DueDate.UTC().Format(dateLayout)
		assert.Equal(t, models.TaskStatusTodo, task.Status)
		assert.NotNil(t, task.TemplateTaskID)
	}
	assert.Equal(t, map[string]string{"Threat model": "2024-01-18", "Pen test": "2024-02-08"}, due)

	project, err := env.repos.Projects.FindByID(result.Project.ID, "ProjectRoles")
	require.NoError(t, err)
	assignments := project.ProjectRoles
	require.Len(t, assignments, 1)

	err = env.repos.Transaction(func(tx *repository.Repositories) error {
		created, err := env.generator.Generate(tx, GenerateTasksInput{
			ProjectID:   result.Project.ID,
			StartDate:   result.Project.StartDate,
			Assignments: assignments,
		})
		assert.Equal(t, 0, created)
		return err
	})
	require.NoError(t, err)
	assert.Len(t, env.projectTasks(t, result.Project.ID), 2)
}

func TestProjectService_NoAutoAssignTemplatesGeneratesNothing(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "bob", models.SystemRoleUser)
	role := env.createRole(t, "Business Analyst")
	env.createTemplate(t, role.ID, "Manual only", false, TemplateTaskInput{Description: "Interview", OffsetDays: 3})

	result := env.createProject(t, "Quiet", "2024-02-01", map[uint64]uint64{role.ID: user.ID})
	assert.Equal(t, 0, result.GeneratedTasks)
	assert.Empty(t, env.projectTasks(t, result.Project.ID))
	require.Len(t, result.Project.ProjectRoles, 1)
	assert.Equal(t, "bob", result.Project.ProjectRoles[0].User.Username)
}

func TestProjectService_UnknownReferencesRollBack(t *testing.T) {
	env := newTestEnv(t)
	role := env.createRole(t, "Infra Lead")
	env.createTemplate(t, role.ID, "Infra", true, TemplateTaskInput{Description: "Provision", OffsetDays: -7})

	missingUser := uint64(9999)
	_, err := env.projects.CreateProject(env.manager, CreateProjectInput{
		Name:            "Broken",
		StartDate:       "2024-03-01",
		RoleAssignments: map[string]*uint64{roleKey(role.ID): &missingUser},
	})
	assert.ErrorIs(t, err, ErrValidation)

	existing := env.createUser(t, "carol", models.SystemRoleUser).ID
	_, err = env.projects.CreateProject(env.manager, CreateProjectInput{
		Name:            "Broken",
		StartDate:       "2024-03-01",
		RoleAssignments: map[string]*uint64{"424242": &existing},
	})
	assert.ErrorIs(t, err, ErrValidation)

	count, err := env.repos.Projects.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestProjectService_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.projects.CreateProject(env.manager, CreateProjectInput{Name: " ", StartDate: "2024-03-01"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.projects.CreateProject(env.manager, CreateProjectInput{Name: "Site", StartDate: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.projects.CreateProject(env.manager, CreateProjectInput{
		Name:            "Site",
		StartDate:       "2024-03-01",
		RoleAssignments: map[string]*uint64{"abc": nil},
	})
	assert.ErrorIs(t, err, ErrValidation)

	user := PrincipalOf(env.createUser(t, "dave", models.SystemRoleUser))
	_, err = env.projects.CreateProject(user, CreateProjectInput{Name: "Site", StartDate: "2024-03-01"})
	assert.ErrorIs(t, err, policy.ErrForbidden)
}

func TestProjectService_UpdateAssignments(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.SystemRoleUser)
	bob := env.createUser(t, "bob", models.SystemRoleUser)
	infra := env.createRole(t, "Infra Lead")
	security := env.createRole(t, "Security Architect")
	env.createTemplate(t, infra.ID, "Infra", true, TemplateTaskInput{Description: "Provision servers", OffsetDays: -7})
	env.createTemplate(t, security.ID, "Security", true,
		TemplateTaskInput{Description: "Threat model", OffsetDays: -14},
		TemplateTaskInput{Description: "Pen test", OffsetDays: 7},
	)

	result := env.createProject(t, "Site A", "2024-03-01", map[uint64]uint64{infra.ID: alice.ID})
	projectID := result.Project.ID
	require.Len(t, env.projectTasks(t, projectID), 1)

	// Reassigning keeps the existing tasks with the new assignee.
	updated, err := env.projects.UpdateProject(context.Background(), env.manager, projectID, UpdateProjectInput{
		RoleAssignments: map[string]*uint64{roleKey(infra.ID): &bob.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.GeneratedTasks)
	tasks := env.projectTasks(t, projectID)
	require.Len(t, tasks, 1)
	assert.Equal(t, bob.ID, tasks[0].ProjectRole.UserID)

	// Adding a role generates its tasks; moving the start date leaves due dates alone.
	newStart := "2024-04-01"
	updated, err = env.projects.UpdateProject(context.Background(), env.manager, projectID, UpdateProjectInput{
		StartDate:       &newStart,
		RoleAssignments: map[string]*uint64{roleKey(security.ID): &alice.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.GeneratedTasks)
	assert.Equal(t, int64(3), updated.TaskCount)
	for _, task := range env.projectTasks(t, projectID) {
		if task.Description == "Provision servers" {
			assert.Equal(t, "2024-02-23", task.DueDate.UTC().Format(dateLayout))
		}
	}

	// Clearing a role removes its assignment and tasks.
	updated, err = env.projects.UpdateProject(context.Background(), env.manager, projectID, UpdateProjectInput{
		RoleAssignments: map[string]*uint64{roleKey(infra.ID): nil},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.TaskCount)
	require.Len(t, updated.Project.ProjectRoles, 1)
	assert.Equal(t, security.ID, updated.Project.ProjectRoles[0].RoleID)

	_, err = env.projects.UpdateProject(context.Background(), env.manager, 777, UpdateProjectInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectService_DeleteRemovesStoredFiles(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.SystemRoleUser)
	role := env.createRole(t, "Infra Lead")
	env.createTemplate(t, role.ID, "Infra", true, TemplateTaskInput{Description: "Provision servers", OffsetDays: -7})
	result := env.createProject(t, "Site A", "2024-03-01", map[uint64]uint64{role.ID: alice.ID})
	tasks := env.projectTasks(t, result.Project.ID)
	require.Len(t, tasks, 1)

	attachment, err := env.attachments.AddAttachment(context.Background(), PrincipalOf(alice), tasks[0].ID, textUpload("notes.txt", "hello"))
	require.NoError(t, err)

	require.NoError(t, env.projects.DeleteProject(context.Background(), env.manager, result.Project.ID))

	_, err = env.store.Open(context.Background(), attachment.FileName)
	assert.Error(t, err)
	_, err = env.projects.GetProject(env.manager, result.Project.ID)
	assert.True(t, errors.Is(err, ErrProjectNotFound))

	assert.ErrorIs(t, env.projects.DeleteProject(context.Background(), env.manager, result.Project.ID), ErrNotFound)
}

func TestProjectService_List(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.SystemRoleUser)
	role := env.createRole(t, "Infra Lead")
	env.createTemplate(t, role.ID, "Infra", true, TemplateTaskInput{Description: "Provision servers", OffsetDays: -7})

	env.createProject(t, "First", "2024-03-01", map[uint64]uint64{role.ID: alice.ID})
	env.createProject(t, "Second", "2024-05-01", nil)

	results, total, err := env.projects.ListProjects(PrincipalOf(alice), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, results, 2)
	assert.Equal(t, "Second", results[0].Project.Name)
	assert.Equal(t, int64(0), results[0].TaskCount)
	assert.Equal(t, int64(1), results[1].TaskCount)
}
