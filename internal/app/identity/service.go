/*
Package identity implements the account side of the backend: registration, sign-in,
identity tokens, sign-out revocation and password reset.
*/
package identity

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"schoolmaps/internal/app/mail"
	"schoolmaps/internal/pkg/auth/jwt"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/metrics"
	"schoolmaps/internal/pkg/randx"
	"schoolmaps/internal/pkg/validate"
	"schoolmaps/internal/pkg/wire"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128

	// ResetTokenTTL is how long a password reset token stays usable.
	ResetTokenTTL = time.Hour
)

// Config holds the settings the service needs from the app configuration.
type Config struct {
	JWTSecret  string
	AppBaseURL string
	TokenTTL   time.Duration
}

// Service implements the identity operations. Errors returned to callers are
// *errs.CustomError values.
type Service struct {
	cfg     Config
	users   Repository
	tokens  TokenStore
	mailer  mail.Mailer
	metrics metrics.Recorder
	log     zerolog.Logger

	// hashCost is lowered in tests.
	hashCost int
}

func NewService(cfg Config, users Repository, tokens TokenStore, mailer mail.Mailer, rec metrics.Recorder) *Service {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = jwt.UserIdentityExpiration
	}
	if rec == nil {
		rec = metrics.Nop{}
	}

	return &Service{
		cfg:      cfg,
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		metrics:  rec,
		log:      logx.Component("identity"),
		hashCost: bcrypt.DefaultCost,
	}
}

// IsRevoked lets the JWT middleware consult the sign-out revocation list.
func (s *Service) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.tokens.IsRevoked(ctx, tokenID)
}

func checkPassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return errs.NewError(errs.ErrWeakPassword)
	}
	return nil
}

func toIdentity(u User) wire.Identity {
	return wire.Identity{
		UID:         u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

func (s *Service) issue(u User) (wire.AuthResult, error) {
	payload := &jwt.Payload{
		ID:       u.ID,
		Email:    u.Email,
		UserType: jwt.UserTypeRegistered,
	}

	token, err := jwt.GenerateToken(payload, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return wire.AuthResult{}, errs.NewError(errs.ErrUnknown, err)
	}

	return wire.AuthResult{Token: token, Identity: toIdentity(u)}, nil
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (wire.AuthResult, error) {
	if !validate.Email(email) {
		return wire.AuthResult{}, errs.NewError(errs.ErrInvalidEmail)
	}
	if err := checkPassword(password); err != nil {
		return wire.AuthResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return wire.AuthResult{}, errs.NewError(errs.ErrUnknown, err)
	}

	user, err := s.users.CreateUser(ctx, User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.log.Warn().Str("email", email).Msg("registration conflict: email already registered")
			return wire.AuthResult{}, errs.NewError(errs.ErrEmailInUse)
		}
		return wire.AuthResult{}, errs.NewError(errs.ErrUnknown, err)
	}

	s.metrics.RecordAuthEvent("register")
	s.log.Info().Str("user_id", user.ID).Msg("user registered")

	return s.issue(user)
}

// SignIn checks credentials and issues a new identity token.
func (s *Service) SignIn(ctx context.Context, email, password string) (wire.AuthResult, error) {
	if !validate.Email(email) {
		return wire.AuthResult{}, errs.NewError(errs.ErrInvalidEmail)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.RecordAuthEvent("login_failed")
			return wire.AuthResult{}, errs.NewError(errs.ErrInvalidCredentials)
		}
		return wire.AuthResult{}, errs.NewError(errs.ErrUnknown, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordAuthEvent("login_failed")
		s.log.Warn().Str("user_id", user.ID).Msg("login: password mismatch")
		return wire.AuthResult{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("login: failed to update last_login_at")
	}

	s.metrics.RecordAuthEvent("login")
	return s.issue(user)
}

// SignOut revokes the presented token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, payload *jwt.Payload) error {
	if payload == nil {
		return errs.NewError(errs.ErrUnauthorized)
	}

	if err := s.tokens.Revoke(ctx, payload.Id, payload.Remaining()); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	s.metrics.RecordAuthEvent("logout")
	return nil
}

// CurrentUser returns the identity behind a valid token.
func (s *Service) CurrentUser(ctx context.Context, payload *jwt.Payload) (wire.Identity, error) {
	if payload == nil {
		return wire.Identity{}, errs.NewError(errs.ErrUnauthorized)
	}

	user, err := s.users.GetUserByID(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return wire.Identity{}, errs.NewError(errs.ErrUnauthorized)
		}
		return wire.Identity{}, errs.NewError(errs.ErrUnknown, err)
	}

	return toIdentity(user), nil
}

// RequestPasswordReset mails a reset token. Unknown addresses succeed silently so the
// endpoint cannot be used to probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if !validate.Email(email) {
		return errs.NewError(errs.ErrInvalidEmail)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.Info().Msg("password reset requested for unknown email")
			return nil
		}
		return errs.NewError(errs.ErrUnknown, err)
	}

	token, err := randx.ResetToken()
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	if err := s.tokens.SaveResetToken(ctx, token, user.ID, ResetTokenTTL); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	msg, err := mail.PasswordReset(user.Email, s.cfg.AppBaseURL, token)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	s.metrics.RecordAuthEvent("password_reset_requested")
	return nil
}

// ConfirmPasswordReset spends token and sets the new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if !randx.IsValidResetToken(token) {
		return errs.NewError(errs.ErrResetTokenInvalid)
	}
	if err := checkPassword(password); err != nil {
		return err
	}

	userID, err := s.tokens.TakeResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return errs.NewError(errs.ErrResetTokenInvalid)
		}
		return errs.NewError(errs.ErrUnknown, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return errs.NewError(errs.ErrResetTokenInvalid)
		}
		return errs.NewError(errs.ErrUnknown, err)
	}

	s.metrics.RecordAuthEvent("password_reset")
	return nil
}
