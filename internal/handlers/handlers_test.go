package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/database"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/services"
	"github.com/yukikurage/rollout-ready-api/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	repos       *repository.Repositories
	authService *services.AuthService
	store       *storage.LocalStore
	router      *gin.Engine
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repos := repository.New(database.OpenTestDB(t))
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	authService := services.NewAuthService(repos, time.Hour, nil)
	generator := services.NewTaskGenerator(nil)
	taskService := services.NewTaskService(repos, store, nil)

	h := Handlers{
		Auth:        NewAuthHandler(authService, nil),
		Users:       NewUserHandler(services.NewUserService(repos, nil), nil),
		Roles:       NewRoleHandler(services.NewRoleService(repos, nil), nil),
		Templates:   NewTemplateHandler(services.NewTemplateService(repos, nil, nil), nil),
		Projects:    NewProjectHandler(services.NewProjectService(repos, generator, store, nil), taskService, nil),
		Tasks:       NewTaskHandler(taskService, nil),
		Attachments: NewAttachmentHandler(services.NewAttachmentService(repos, store, nil), nil),
		Health:      NewHealthHandler(services.NewHousekeepingService(repos, store, nil), nil),
	}

	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	RegisterRoutes(r, h, authService, nil)

	return &testEnv{
		repos:       repos,
		authService: authService,
		store:       store,
		router:      r,
	}
}

// createUser inserts a user and an open session, returning the bearer token.
// The password hash is never checked by these tests.
func (e *testEnv) createUser(t *testing.T, username string, role models.SystemRole) (*models.User, string) {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "unused",
		SystemRole:   role,
		IsActive:     true,
	}
	require.NoError(t, e.repos.Users.Create(user))

	token := "token-" + username
	require.NoError(t, e.repos.Sessions.Create(&models.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, token)
}

func (e *testEnv) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
