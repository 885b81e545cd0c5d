package seed

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yukikurage/rollout-ready-api/internal/database"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
)

func TestMain(m *testing.M) {
	hashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestRun_CreatesCatalog(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))

	result, err := Run(repos, nil)
	require.NoError(t, err)
	assert.Equal(t, &Result{Users: 5, Roles: 4, Templates: 3}, result)

	admin, err := repos.Users.FindByUsername("admin")
	require.NoError(t, err)
	assert.Equal(t, models.SystemRoleAdmin, admin.SystemRole)
	assert.Equal(t, "admin@rolloutready.com", admin.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")))

	alice, err := repos.Users.FindByUsername("alice")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(alice.PasswordHash), []byte("user123")))

	role, err := repos.Roles.FindByName("Security Architect", 0)
	require.NoError(t, err)
	auto, err := repos.Templates.FindAutoAssign(role.ID)
	require.NoError(t, err)
	require.Len(t, auto, 1)
	require.Len(t, auto[0].TemplateTasks, 4)
	assert.Equal(t, -21, auto[0].TemplateTasks[0].OffsetDays)

	analyst, err := repos.Roles.FindByName("Business Analyst", 0)
	require.NoError(t, err)
	auto, err = repos.Templates.FindAutoAssign(analyst.ID)
	require.NoError(t, err)
	assert.Empty(t, auto)
}

func TestRun_Idempotent(t *testing.T) {
	repos := repository.New(database.OpenTestDB(t))

	_, err := Run(repos, nil)
	require.NoError(t, err)

	result, err := Run(repos, nil)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result)

	count, err := repos.Users.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	templates, err := repos.Templates.List(repository.TemplateFilter{})
	require.NoError(t, err)
	assert.Len(t, templates, 3)
}
