package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/auth"
	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/models"
	"github.com/yukikurage/catena-api/internal/repository"
	"github.com/yukikurage/catena-api/internal/validation"
)

var (
	ErrEmailTaken           = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
	ErrFailedToIssueToken   = errors.New("failed to issue token")
)

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenIssuer
	log      logging.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, tokens *auth.TokenIssuer, log logging.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		log:      log,
	}
}

// Credentials holds an email and a plain password.
type Credentials struct {
	Email    string
	Password string
}

// Session is an authenticated user and the bearer token issued for them.
type Session struct {
	User  *models.User
	Token string
}

// UpdateProfileInput carries optional profile fields.
type UpdateProfileInput struct {
	Username *string
	Email    *string
}

// Signup registers a new user and issues a token.
func (s *AuthService) Signup(ctx context.Context, input Credentials) (*Session, error) {
	email, err := cleanEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		s.log.Error(ctx, "user store failure", "operation", "signup", "error", err)
		return nil, fmt.Errorf("%w: signup: %w", ErrPersistence, err)
	}

	s.log.Info(ctx, "user signed up", "user_id", user.ID)
	return s.issue(user)
}

// Authenticate verifies credentials and returns the user with tasks and
// schedules loaded.
func (s *AuthService) Authenticate(ctx context.Context, input Credentials) (*Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, validation.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	full, err := s.Profile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(full)
}

// Profile returns the user with active tasks and their schedules.
func (s *AuthService) Profile(ctx context.Context, userID uint64) (*models.User, error) {
	user, err := s.userRepo.FindWithTasks(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// UpdateProfile edits username and email. An empty username clears it.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint64, input UpdateProfileInput) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := validation.StripTags(*input.Username)
		if username == "" {
			user.Username = nil
		} else {
			user.Username = &username
		}
	}
	if input.Email != nil {
		email, err := cleanEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		s.log.Error(ctx, "user store failure", "operation", "update profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: update profile: %w", ErrPersistence, err)
	}

	return s.Profile(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	return s.setPassword(ctx, userID, next)
}

func (s *AuthService) setPassword(ctx context.Context, userID uint64, password string) error {
	if len(password) < constants.MinPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.log.Error(ctx, "user store failure", "operation", "update password", "user_id", userID, "error", err)
		return fmt.Errorf("%w: update password: %w", ErrPersistence, err)
	}

	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToIssueToken, err)
	}
	return &Session{User: user, Token: token}, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrFailedToHashPassword
	}
	return string(hashed), nil
}

var emailValidator = validator.New()

func cleanEmail(raw string) (string, error) {
	email := validation.NormalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, &validation.FieldError{
			Field: "email", Validation: "required", Message: "email is required",
		})
	}
	if err := emailValidator.Var(email, "email"); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, &validation.FieldError{
			Field: "email", Validation: "email", Message: "email must be a valid email address",
		})
	}
	return email, nil
}
