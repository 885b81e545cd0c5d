package constants

import "time"

// Context keys
const (
	ContextKeyPrincipal = "principal"
	ContextKeyUserID    = "user_id"
)

// Session
const (
	SessionCookieName = "rollout_session"
	SessionTokenKey   = "token"
	SessionTokenBytes = 32
	DefaultSessionTTL = 7 * 24 * time.Hour
	BcryptCost        = 12
)

// Passwords
const (
	MinPasswordLength       = 8
	MinAdminPasswordLength  = 6
	GeneratedPasswordLength = 12
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Attachments
const (
	MaxAttachmentSize   = 10 << 20
	AttachmentKeyPrefix = "task_"
)

// AI drafting
const (
	MaxSuggestedTasks     = 20
	DefaultSuggestedTasks = 8
)
