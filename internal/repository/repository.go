package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID with its job role
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// FindByLogin finds a user whose username or email equals identifier
	FindByLogin(identifier string) (*models.User, error)

	// FindConflict finds another user holding username or email
	FindConflict(username, email string, excludeID uint64) (*models.User, error)

	// List lists users ordered by username
	List(filter UserFilter) ([]models.User, error)

	// Update saves every column of user
	Update(user *models.User) error

	// CountByIDs counts how many of the given user IDs exist
	CountByIDs(ids []uint64) (int64, error)

	// ClearJobRole removes roleID as job role from every user
	ClearJobRole(roleID uint64) error

	// Count counts all users
	Count() (int64, error)

	// CountBySystemRole counts active users holding role
	CountBySystemRole(role models.SystemRole) (int64, error)
}

// UserFilter holds filtering options for listing users
type UserFilter struct {
	JobRoleID *uint64
	Active    *bool
}

// SessionRepository defines the interface for login session storage
type SessionRepository interface {
	Create(session *models.Session) error

	// FindByToken finds a session and its user
	FindByToken(token string) (*models.Session, error)

	DeleteByToken(token string) error

	DeleteByUser(userID uint64) error

	// DeleteExpired removes sessions that expired before now
	DeleteExpired(now time.Time) (int64, error)
}

// RoleRepository defines the interface for role data access
type RoleRepository interface {
	Create(role *models.Role) error

	FindByID(id uint64) (*models.Role, error)

	// FindByName finds a role by exact name, ignoring excludeID
	FindByName(name string, excludeID uint64) (*models.Role, error)

	// List lists roles ordered by name
	List() ([]models.Role, error)

	// Counts returns template and project role counts keyed by role ID
	Counts() (templates map[uint64]int64, projectRoles map[uint64]int64, err error)

	Update(role *models.Role) error

	// CountProjectRoles counts assignments that use the role
	CountProjectRoles(roleID uint64) (int64, error)

	// Delete deletes the role with its templates and template tasks and clears
	// it as job role
	Delete(id uint64) error

	// CountByIDs counts how many of the given role IDs exist
	CountByIDs(ids []uint64) (int64, error)

	Count() (int64, error)
}

// TemplateRepository defines the interface for template data access
type TemplateRepository interface {
	// Create creates the template and its tasks
	Create(template *models.Template) error

	// FindByID finds a template with its role and tasks ordered by offset
	FindByID(id uint64) (*models.Template, error)

	// List lists templates with their role and tasks
	List(filter TemplateFilter) ([]models.Template, error)

	// Replace overwrites the template columns and swaps its whole task set
	Replace(template *models.Template, tasks []models.TemplateTask) error

	// CountTaskReferences counts project tasks generated from the template
	CountTaskReferences(templateID uint64) (int64, error)

	// Delete deletes the template and its tasks
	Delete(id uint64) error

	// FindAutoAssign finds auto-assign templates for a role with their tasks
	FindAutoAssign(roleID uint64) ([]models.Template, error)

	Count() (int64, error)
}

// TemplateFilter holds filtering options for listing templates
type TemplateFilter struct {
	RoleID *uint64
}

// ProjectRepository defines the interface for project and assignment data access
type ProjectRepository interface {
	Create(project *models.Project) error

	// FindByID finds a project with optional preloading
	FindByID(id uint64, preload ...string) (*models.Project, error)

	// List lists projects newest first with their assignments
	List(page, pageSize int) ([]models.Project, int64, error)

	// Update saves the project columns only
	Update(project *models.Project) error

	// Delete deletes the project with its tasks, attachment rows and assignments
	Delete(id uint64) error

	// TaskCounts returns task counts keyed by project ID
	TaskCounts(projectIDs []uint64) (map[uint64]int64, error)

	// FindAssignment finds the assignment of roleID on projectID
	FindAssignment(projectID, roleID uint64) (*models.ProjectRole, error)

	// FindAssignmentByID finds an assignment by ID
	FindAssignmentByID(id uint64) (*models.ProjectRole, error)

	CreateAssignment(assignment *models.ProjectRole) error

	UpdateAssignment(assignment *models.ProjectRole) error

	// DeleteAssignment deletes the assignment with its tasks and their attachment rows
	DeleteAssignment(id uint64) error

	Count() (int64, error)
}

// TaskRepository defines the interface for project task data access
type TaskRepository interface {
	// Create creates a task
	Create(task *models.ProjectTask) error

	// CreateIfAbsent inserts a generated task unless one already exists for its
	// (project, template task, project role); created is false when skipped
	CreateIfAbsent(task *models.ProjectTask) (created bool, err error)

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.ProjectTask, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.ProjectTask, int64, error)

	// ListByAssignee lists every task whose project role is filled by userID
	ListByAssignee(userID uint64) ([]models.ProjectTask, error)

	// Update updates a task
	Update(task *models.ProjectTask) error

	// Delete deletes a task and its attachment rows
	Delete(id uint64) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectID      *uint64
	ProjectRoleID  *uint64
	AssigneeUserID *uint64
	Status         *models.TaskStatus
	Page           int
	PageSize       int
}

// AttachmentRepository defines the interface for attachment metadata
type AttachmentRepository interface {
	Create(attachment *models.TaskAttachment) error

	FindByID(id uint64) (*models.TaskAttachment, error)

	// ListByTask lists a task's attachments newest first
	ListByTask(taskID uint64) ([]models.TaskAttachment, error)

	// FileNamesByProject lists stored names of every attachment in a project
	FileNamesByProject(projectID uint64) ([]string, error)

	// FileNamesByProjectRole lists stored names for tasks of an assignment
	FileNamesByProjectRole(projectRoleID uint64) ([]string, error)

	// FileNamesByTask lists stored names for one task
	FileNamesByTask(taskID uint64) ([]string, error)

	// ExistingFileNames returns the subset of names that have a metadata row
	ExistingFileNames(names []string) (map[string]bool, error)

	Delete(id uint64) error
}

// Repositories bundles every repository over one handle so a service can run
// several of them in a single transaction.
type Repositories struct {
	db *gorm.DB

	Users       UserRepository
	Sessions    SessionRepository
	Roles       RoleRepository
	Templates   TemplateRepository
	Projects    ProjectRepository
	Tasks       TaskRepository
	Attachments AttachmentRepository
}

// New builds the repositories over db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Users:       NewUserRepository(db),
		Sessions:    NewSessionRepository(db),
		Roles:       NewRoleRepository(db),
		Templates:   NewTemplateRepository(db),
		Projects:    NewProjectRepository(db),
		Tasks:       NewTaskRepository(db),
		Attachments: NewAttachmentRepository(db),
	}
}

// Transaction runs fn with repositories bound to one database transaction.
// Returning an error from fn rolls everything back.
func (r *Repositories) Transaction(fn func(tx *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// DB exposes the underlying handle for health checks.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// Paginate applies offset pagination when page and pageSize are positive.
func Paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page <= 0 || pageSize <= 0 {
			return db
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
