package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/utils"
)

func TestOptional(t *testing.T) {
	var body struct {
		CompletedAt Optional[time.Time] `json:"completed_at"`
		JobRoleID   Optional[uint64]    `json:"job_role_id"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{}`), &body))
	assert.False(t, body.CompletedAt.Set)
	assert.False(t, body.CompletedAt.Null())

	require.NoError(t, json.Unmarshal([]byte(`{"completed_at":null,"job_role_id":4}`), &body))
	assert.True(t, body.CompletedAt.Null())
	require.NotNil(t, body.JobRoleID.Value)
	assert.Equal(t, uint64(4), *body.JobRoleID.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"completed_at":"2024-03-01T10:00:00Z"}`), &body))
	require.NotNil(t, body.CompletedAt.Value)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), body.CompletedAt.Value.UTC())

	assert.Error(t, json.Unmarshal([]byte(`{"completed_at":"yesterday"}`), &body))
}

func TestToTaskDTO(t *testing.T) {
	task := models.ProjectTask{
		ID:          9,
		ProjectID:   2,
		Description: "Freeze changes",
		Status:      models.TaskStatusTodo,
		Project:     &models.Project{ID: 2, Name: "Site A"},
		ProjectRole: &models.ProjectRole{
			ID:   5,
			Role: models.Role{ID: 3, Name: "Infrastructure Lead"},
			User: models.User{ID: 7, Username: "alice"},
		},
		TemplateTask: &models.TemplateTask{IsCritical: true},
	}

	dto := ToTaskDTO(task)
	require.NotNil(t, dto.Project)
	assert.Equal(t, "Site A", dto.Project.Name)
	require.NotNil(t, dto.Role)
	assert.Equal(t, "Infrastructure Lead", dto.Role.Name)
	require.NotNil(t, dto.Assignee)
	assert.Equal(t, "alice", dto.Assignee.Username)
	assert.True(t, dto.IsCritical)
	assert.False(t, dto.IsRecurring)

	manual := ToTaskDTO(models.ProjectTask{ID: 10, Description: "Call the vendor"})
	assert.Nil(t, manual.Project)
	assert.Nil(t, manual.Assignee)
	assert.False(t, manual.IsCritical)
}

func TestToTaskListResponse_Pages(t *testing.T) {
	resp := ToTaskListResponse(nil, utils.PaginationParams{Page: 2, Limit: 10}, 21)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 10, resp.PageSize)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Empty(t, resp.Tasks)
}
