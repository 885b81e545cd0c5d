package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/services"
)

type stubAuthenticator map[string]policy.Principal

func (s stubAuthenticator) Authenticate(token string) (policy.Principal, error) {
	if token == "broken" {
		return policy.Principal{}, errors.New("database is down")
	}
	p, ok := s[token]
	if !ok {
		return policy.Principal{}, services.ErrSessionInvalid
	}
	return p, nil
}

var testPrincipals = stubAuthenticator{
	"admin-token": {ID: 1, Username: "admin", SystemRole: models.SystemRoleAdmin},
	"user-token":  {ID: 2, Username: "alice", SystemRole: models.SystemRoleUser},
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))

	// /login stores a token in the cookie session the way the auth handler does.
	r.GET("/login", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(constants.SessionTokenKey, c.Query("token"))
		_ = session.Save()
		c.Status(http.StatusNoContent)
	})

	handlers = append(handlers, func(c *gin.Context) {
		principal, _ := GetPrincipal(c)
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"username": principal.Username, "user_id": userID})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestRequireAuth(t *testing.T) {
	r := newRouter(RequireAuth(testPrincipals, nil))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"not a bearer header", "Basic abc", http.StatusUnauthorized},
		{"lookup failure", "Bearer broken", http.StatusInternalServerError},
		{"valid token", "Bearer user-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRequireAuth_SessionCookie(t *testing.T) {
	r := newRouter(RequireAuth(testPrincipals, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login?token=admin-token", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"admin","user_id":1}`, w.Body.String())
}

func TestRequirePermission(t *testing.T) {
	r := newRouter(RequireAuth(testPrincipals, nil), RequirePermission(policy.ManageUsers))

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"admin allowed", "admin-token", http.StatusOK},
		{"user denied", "user-token", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequirePermission_WithoutAuth(t *testing.T) {
	r := newRouter(RequirePermission(policy.ViewCatalog))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetUserID(c)
	assert.False(t, ok)

	c.Set(constants.ContextKeyUserID, uint64(7))
	id, ok := GetUserID(c)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)

	c.Set(constants.ContextKeyUserID, -1)
	_, ok = GetUserID(c)
	assert.False(t, ok)
}
