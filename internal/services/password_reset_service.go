package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/mail"
	"github.com/yukikurage/catena-api/internal/models"
	"github.com/yukikurage/catena-api/internal/repository"
	"github.com/yukikurage/catena-api/internal/utils"
	"github.com/yukikurage/catena-api/internal/validation"
)

var ErrResetTokenExpired = errors.New("token has expired")

// PasswordResetService issues and redeems password-reset tokens.
type PasswordResetService struct {
	users    repository.UserRepository
	resets   repository.PasswordResetRepository
	auth     *AuthService
	mailer   mail.Mailer
	log      logging.Logger
	ttl      time.Duration
	resetURL string
	now      func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	authService *AuthService,
	mailer mail.Mailer,
	log logging.Logger,
	ttl time.Duration,
	resetURL string,
) *PasswordResetService {
	return &PasswordResetService{
		users:    users,
		resets:   resets,
		auth:     authService,
		mailer:   mailer,
		log:      log,
		ttl:      ttl,
		resetURL: resetURL,
		now:      time.Now,
	}
}

// ResetInput redeems a token for a new password.
type ResetInput struct {
	Email    string
	Token    string
	Password string
}

// Forgot replaces any outstanding token for the email with a fresh one and
// mails it. The email must belong to a user.
func (s *PasswordResetService) Forgot(ctx context.Context, rawEmail string) error {
	email := validation.NormalizeEmail(rawEmail)

	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, &validation.FieldError{
				Field: "email", Validation: "exists", Message: "email is not registered",
			})
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	token, err := utils.GenerateToken(constants.ResetTokenBytes)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return ErrFailedToHashPassword
	}

	reset := &models.PasswordReset{Email: email, TokenHash: string(hash)}
	if err := s.resets.Replace(ctx, reset); err != nil {
		s.log.Error(ctx, "reset store failure", "operation", "forgot", "error", err)
		return fmt.Errorf("%w: forgot: %w", ErrPersistence, err)
	}

	msg := mail.Message{
		To:      email,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"Use this link to choose a new password:\n\n%s\n\nThe link expires in %s.\n",
			s.link(email, token), s.ttl,
		),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error(ctx, "reset mail failed", "error", err)
		return fmt.Errorf("failed to send reset mail: %w", err)
	}

	return nil
}

// Reset consumes the outstanding token for the email whatever the outcome.
// A missing, wrong or expired token yields ErrResetTokenExpired.
func (s *PasswordResetService) Reset(ctx context.Context, input ResetInput) (*Session, error) {
	email := validation.NormalizeEmail(input.Email)

	reset, err := s.resets.Take(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenExpired
		}
		s.log.Error(ctx, "reset store failure", "operation", "reset", "error", err)
		return nil, fmt.Errorf("%w: reset: %w", ErrPersistence, err)
	}

	if s.now().UTC().Sub(reset.CreatedAt.UTC()) > s.ttl {
		return nil, ErrResetTokenExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(reset.TokenHash), []byte(input.Token)); err != nil {
		return nil, ErrResetTokenExpired
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenExpired
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.auth.setPassword(ctx, user.ID, input.Password); err != nil {
		return nil, err
	}

	return s.auth.issue(user)
}

// PurgeExpired deletes tokens older than the TTL.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.PurgeOlderThan(ctx, s.now().UTC().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	if n > 0 {
		s.log.Info(ctx, "purged expired reset tokens", "count", n)
	}
	return n, nil
}

func (s *PasswordResetService) link(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return s.resetURL + "?" + q.Encode()
}
