package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tech-arch1tect/inkpress/apperr"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/user"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

const invalidCredentialsMessage = "Invalid email or password"

// MaxPasswordBytes is the most bcrypt will hash.
const MaxPasswordBytes = 72

type RegisterInput struct {
	Firstname       string
	Email           string
	Password        string
	ConfirmPassword string
}

type Service struct {
	config *config.AuthConfig
	users  user.Directory
	logger *logging.Service
	cost   int
	// dummyHash is compared against when the email is unknown so both
	// failure paths spend the same bcrypt work.
	dummyHash []byte
}

func NewService(cfg *config.AuthConfig, users user.Directory, logger *logging.Service) *Service {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("inkpress-unknown-account"), cost)
	if err != nil {
		logger.Error("failed to prepare dummy password hash", zap.Error(err))
	}

	return &Service{
		config:    cfg,
		users:     users,
		logger:    logger.Named("auth"),
		cost:      cost,
		dummyHash: dummy,
	}
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.MinLength {
		s.logger.Debug("password validation failed: insufficient length",
			zap.Int("length", len(password)),
			zap.Int("min_required", s.config.MinLength))
		return fmt.Errorf("password must be at least %d characters", s.config.MinLength)
	}
	if len(password) > MaxPasswordBytes {
		s.logger.Debug("password validation failed: too long", zap.Int("length", len(password)))
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordBytes)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	var missing []string

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if s.config.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		s.logger.Debug("password validation failed: missing requirements",
			zap.Strings("missing_requirements", missing))
		return fmt.Errorf("password must contain at least %s", strings.Join(missing, ", "))
	}

	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Verify checks an email and password pair. Unknown emails and wrong
// passwords produce the same Unauthorized error.
func (s *Service) Verify(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, apperr.Internal("failed to load user", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Info("login rejected: unknown email")
		return nil, apperr.Unauthorized(invalidCredentialsMessage, ErrInvalidCredentials)
	}

	if err := s.VerifyPassword(u.Password, password); err != nil {
		s.logger.Info("login rejected: wrong password", zap.String("user_id", u.ID))
		return nil, apperr.Unauthorized(invalidCredentialsMessage, err)
	}

	return u, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	if in.Password != in.ConfirmPassword {
		return nil, apperr.Validation("Passwords do not match", map[string]string{
			"confirmPassword": "must match password",
		})
	}

	if err := s.ValidatePassword(in.Password); err != nil {
		return nil, apperr.Validation("Password does not meet requirements", map[string]string{
			"password": err.Error(),
		})
	}

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal("failed to check email", err)
	}
	if exists {
		return nil, apperr.Conflict("Email already in use", user.ErrEmailTaken)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	u := &user.User{
		Firstname: strings.TrimSpace(in.Firstname),
		Email:     in.Email,
		Password:  hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, apperr.Conflict("Email already in use", err)
		}
		return nil, apperr.Internal("failed to create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID))
	return u, nil
}
