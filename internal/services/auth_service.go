package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/utils"
)

// passwordHashCost is lowered by tests.
var passwordHashCost = constants.BcryptCost

var validate = validator.New()

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// AuthService handles registration, login and session lookup.
type AuthService struct {
	repos      *repository.Repositories
	sessionTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(repos *repository.Repositories, sessionTTL time.Duration, logger *zap.Logger) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = constants.DefaultSessionTTL
	}
	return &AuthService{
		repos:      repos,
		sessionTTL: sessionTTL,
		logger:     logging.OrNop(logger),
		now:        time.Now,
	}
}

// RegisterInput represents the self-service signup form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// Register creates a USER account and opens a session for it.
func (s *AuthService) Register(input RegisterInput) (*models.User, *models.Session, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)

	if username == "" || email == "" || input.Password == "" || firstName == "" || lastName == "" {
		return nil, nil, newError(ErrValidation, "All fields are required")
	}
	if input.Password != input.ConfirmPassword {
		return nil, nil, ErrPasswordMismatch
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, nil, passwordTooShort(constants.MinPasswordLength)
	}
	if !validEmail(email) {
		return nil, nil, ErrInvalidEmail
	}

	if _, err := s.repos.Users.FindConflict(username, email, 0); err == nil {
		return nil, nil, ErrUserExists
	} else if !isNotFound(err) {
		return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		FirstName:    &firstName,
		LastName:     &lastName,
		SystemRole:   models.SystemRoleUser,
		IsActive:     true,
	}
	if err := s.repos.Users.Create(user); err != nil {
		if isDuplicate(err) {
			return nil, nil, ErrUserExists
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.openSession(user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered", zap.Uint64("user_id", user.ID), zap.String("username", user.Username))
	return user, session, nil
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	// Identifier is a username or an email address.
	Identifier string
	Password   string
}

// Login verifies credentials and opens a new session.
func (s *AuthService) Login(input LoginInput) (*models.User, *models.Session, error) {
	identifier := strings.ToLower(strings.TrimSpace(input.Identifier))
	if identifier == "" || input.Password == "" {
		return nil, nil, newError(ErrValidation, "Username and password are required")
	}

	user, err := s.repos.Users.FindByLogin(identifier)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.openSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

func (s *AuthService) openSession(userID uint64) (*models.Session, error) {
	token, err := utils.GenerateToken(constants.SessionTokenBytes)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.repos.Sessions.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (s *AuthService) Logout(token string) error {
	if token == "" {
		return nil
	}
	if err := s.repos.Sessions.DeleteByToken(token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a token to its principal. Expired sessions are removed.
func (s *AuthService) Authenticate(token string) (policy.Principal, error) {
	if token == "" {
		return policy.Principal{}, ErrSessionInvalid
	}

	session, err := s.repos.Sessions.FindByToken(token)
	if err != nil {
		if isNotFound(err) {
			return policy.Principal{}, ErrSessionInvalid
		}
		return policy.Principal{}, fmt.Errorf("failed to find session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.repos.Sessions.DeleteByToken(token); err != nil {
			s.logger.Warn("failed to delete expired session", zap.Error(err))
		}
		return policy.Principal{}, ErrSessionInvalid
	}
	if !session.User.IsActive {
		return policy.Principal{}, ErrSessionInvalid
	}

	return PrincipalOf(&session.User), nil
}

// PrincipalOf builds the authorization principal for user.
func PrincipalOf(user *models.User) policy.Principal {
	return policy.Principal{
		ID:         user.ID,
		Username:   user.Username,
		SystemRole: user.SystemRole,
	}
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(id uint64) (*models.User, error) {
	user, err := s.repos.Users.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CleanupExpiredSessions deletes every expired session and returns how many went.
func (s *AuthService) CleanupExpiredSessions() (int64, error) {
	removed, err := s.repos.Sessions.DeleteExpired(s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return removed, nil
}

