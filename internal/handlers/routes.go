package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/middleware"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Roles       *RoleHandler
	Templates   *TemplateHandler
	Projects    *ProjectHandler
	Tasks       *TaskHandler
	Attachments *AttachmentHandler
	Health      *HealthHandler
}

// RegisterRoutes mounts the API on r. Coarse role checks happen here; checks
// that depend on the resource stay in the services.
func RegisterRoutes(r *gin.Engine, h Handlers, authenticator middleware.Authenticator, logger *zap.Logger) {
	requireAuth := middleware.RequireAuth(authenticator, logger)

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", requireAuth, h.Auth.GetCurrentUser)
		}

		// User administration
		users := api.Group("/users")
		users.Use(requireAuth)
		{
			users.GET("", middleware.RequirePermission(policy.ViewUsers), h.Users.ListUsers)
			users.GET("/:id", h.Users.GetUser)
			users.POST("", middleware.RequirePermission(policy.ManageUsers), h.Users.CreateUser)
			users.PUT("/:id", middleware.RequirePermission(policy.ManageUsers), h.Users.UpdateUser)
			users.DELETE("/:id", middleware.RequirePermission(policy.ManageUsers), h.Users.DeleteUser)
			users.POST("/:id/reset-password", middleware.RequirePermission(policy.ResetPassword), h.Users.ResetPassword)
		}

		// Role catalog
		roles := api.Group("/roles")
		roles.Use(requireAuth)
		{
			roles.GET("", h.Roles.ListRoles)
			roles.GET("/:id", h.Roles.GetRole)
			roles.POST("", middleware.RequirePermission(policy.ManageCatalog), h.Roles.CreateRole)
			roles.PUT("/:id", middleware.RequirePermission(policy.ManageCatalog), h.Roles.UpdateRole)
			roles.DELETE("/:id", middleware.RequirePermission(policy.ManageCatalog), h.Roles.DeleteRole)
		}

		// Checklist templates
		templates := api.Group("/templates")
		templates.Use(requireAuth)
		{
			templates.GET("", h.Templates.ListTemplates)
			templates.POST("/suggest", middleware.RequirePermission(policy.SuggestTasks), h.Templates.SuggestTasks)
			templates.GET("/:id", h.Templates.GetTemplate)
			templates.POST("", middleware.RequirePermission(policy.ManageCatalog), h.Templates.CreateTemplate)
			templates.PUT("/:id", middleware.RequirePermission(policy.ManageCatalog), h.Templates.UpdateTemplate)
			templates.DELETE("/:id", middleware.RequirePermission(policy.ManageCatalog), h.Templates.DeleteTemplate)
		}

		// Projects
		projects := api.Group("/projects")
		projects.Use(requireAuth)
		{
			projects.GET("", h.Projects.ListProjects)
			projects.GET("/:id", h.Projects.GetProject)
			projects.POST("", middleware.RequirePermission(policy.ManageProjects), h.Projects.CreateProject)
			projects.PUT("/:id", middleware.RequirePermission(policy.ManageProjects), h.Projects.UpdateProject)
			projects.DELETE("/:id", middleware.RequirePermission(policy.ManageProjects), h.Projects.DeleteProject)
			projects.POST("/:id/tasks", middleware.RequirePermission(policy.ManageProjects), h.Projects.CreateTask)
		}

		// Tasks
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", h.Tasks.ListTasks)
			tasks.GET("/user/:username", h.Tasks.GetDashboard)
			tasks.GET("/:id", h.Tasks.GetTask)
			tasks.PATCH("/:id", h.Tasks.UpdateTask)
			tasks.DELETE("/:id", middleware.RequirePermission(policy.DeleteTask), h.Tasks.DeleteTask)
			tasks.GET("/:id/attachments", h.Attachments.ListAttachments)
			tasks.POST("/:id/attachments", h.Attachments.UploadAttachment)
		}

		// Attachments
		attachments := api.Group("/attachments")
		attachments.Use(requireAuth)
		{
			attachments.GET("/:id", h.Attachments.DownloadAttachment)
			attachments.DELETE("/:id", h.Attachments.DeleteAttachment)
		}
	}
}
