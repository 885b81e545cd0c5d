package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/rollout-ready-api/internal/dto"
	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/models"
)

func TestAuthHandler_RegisterLoginLogout(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":         "NewUser",
		"email":            "NewUser@Example.com",
		"password":         "supersecret",
		"confirm_password": "supersecret",
		"first_name":       "New",
		"last_name":        "User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered dto.AuthResponse
	decode(t, w, &registered)
	assert.Equal(t, "newuser", registered.User.Username)
	assert.Equal(t, models.SystemRoleUser, registered.User.SystemRole)
	assert.Len(t, registered.Token, 64)
	require.NotEmpty(t, w.Result().Cookies(), "session cookie should be set")

	// The session cookie alone authenticates.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = env.send(req, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Login by email, case-insensitive.
	w = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "NEWUSER@example.com",
		"password":   "supersecret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var loggedIn dto.AuthResponse
	decode(t, w, &loggedIn)

	w = env.do(t, http.MethodGet, "/api/auth/me", loggedIn.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me dto.UserDTO
	decode(t, w, &me)
	assert.Equal(t, registered.User.ID, me.ID)

	w = env.do(t, http.MethodPost, "/api/auth/logout", loggedIn.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/me", loggedIn.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{
			name:   "missing fields",
			body:   map[string]string{"username": "someone"},
			status: http.StatusBadRequest,
		},
		{
			name: "passwords differ",
			body: map[string]string{
				"username": "someone", "email": "someone@example.com", "password": "supersecret",
				"confirm_password": "different", "first_name": "Some", "last_name": "One",
			},
			status: http.StatusBadRequest,
		},
		{
			name: "short password",
			body: map[string]string{
				"username": "someone", "email": "someone@example.com", "password": "short",
				"confirm_password": "short", "first_name": "Some", "last_name": "One",
			},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAuthHandler_RegisterDuplicate(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "taken", models.SystemRoleUser)

	w := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "taken", "email": "other@example.com", "password": "supersecret",
		"confirm_password": "supersecret", "first_name": "Ta", "last_name": "Ken",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var body errorBody
	decode(t, w, &body)
	assert.Equal(t, apierrors.ErrCodeConflict, body.Code)
}

func TestAuthHandler_LoginInvalidCredentials(t *testing.T) {
	env := setupTestEnv(t)

	body, err := json.Marshal(map[string]string{"username": "nobody", "password": "whatever"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := env.send(req, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var resp errorBody
	decode(t, w, &resp)
	assert.Equal(t, apierrors.ErrCodeInvalidCredentials, resp.Code)
	assert.Equal(t, "Invalid credentials", resp.Message)
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	env := setupTestEnv(t)
	user, token := env.createUser(t, "alice", models.SystemRoleUser)

	w := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me dto.UserDTO
	decode(t, w, &me)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "alice", me.Username)
}
