package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
	"github.com/coinview/backend/internal/repositories"
)

const minimumAccountAge = 18

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	BirthDate time.Time
}

// UpdateUserInput carries optional profile changes; nil fields are left
// untouched.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Password  *string
}

// UserServiceImpl manages accounts and opaque session tokens.
type UserServiceImpl struct {
	repo       repositories.UserRepository
	log        *zap.Logger
	sessionTTL time.Duration
	now        func() time.Time
}

func NewUserService(repo repositories.UserRepository, sessionTTL time.Duration, log *zap.Logger) UserService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &UserServiceImpl{repo: repo, log: log, sessionTTL: sessionTTL, now: time.Now}
}

func validateRegistration(input RegisterInput, now time.Time) error {
	if !strings.Contains(input.Email, "@") {
		return apperrors.Validation("email", "invalid email address")
	}
	if len(input.Password) < 8 {
		return apperrors.Validation("password", "must be at least 8 characters")
	}
	if input.FirstName == "" || input.LastName == "" {
		return apperrors.Validation("name", "first and last name are required")
	}
	if input.BirthDate.IsZero() {
		return apperrors.Validation("birth_date", "birth date is required")
	}
	if age(input.BirthDate, now) < minimumAccountAge {
		return apperrors.Validation("birth_date", fmt.Sprintf("account holders must be at least %d years old", minimumAccountAge))
	}
	return nil
}

func age(birthDate, now time.Time) int {
	years := now.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// Register creates a new account with a bcrypt-hashed password.
func (s *UserServiceImpl) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := validateRegistration(input, s.now()); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Validation("email", "already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:          email,
		HashedPassword: string(hashed),
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		BirthDate:      input.BirthDate,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Uint("user_id", user.ID))
	return user, nil
}

// Login checks the credentials and issues a fresh session token.
func (s *UserServiceImpl) Login(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, apperrors.ErrUnauthorized
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetByToken resolves a bearer token to its user.
func (s *UserServiceImpl) GetByToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	session, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Expired(s.now()) {
		return nil, apperrors.ErrUnauthorized
	}
	user, err := s.repo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}

// Update applies the non-nil profile fields.
func (s *UserServiceImpl) Update(ctx context.Context, userID uint, input UpdateUserInput) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}

	if input.FirstName != nil && *input.FirstName != "" {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil && *input.LastName != "" {
		user.LastName = *input.LastName
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			return nil, apperrors.Validation("password", "must be at least 8 characters")
		}
		hashed, herr := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if herr != nil {
			return nil, fmt.Errorf("failed to hash password: %w", herr)
		}
		user.HashedPassword = string(hashed)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the account and everything it owns.
func (s *UserServiceImpl) Delete(ctx context.Context, userID uint) error {
	return s.repo.Delete(ctx, userID)
}
