package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/auth"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/repositories"
)

// ErrUserBanned is returned by Login for banned accounts.
var ErrUserBanned = fmt.Errorf("%w: user is banned", apperrors.ErrForbidden)

// LoginResult is a signed-in user with its session token.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// UserService defines the interface for user operations.
type UserService interface {
	// Create registers an account with a bcrypt-hashed password.
	Create(ctx context.Context, email, name, password, role string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// Login checks the credentials and issues a token.
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// userService implements UserService.
type userService struct {
	userRepo repositories.UserRepository
	issuer   auth.TokenIssuer
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(userRepo repositories.UserRepository, issuer auth.TokenIssuer, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		issuer:   issuer,
		logger:   logger.Named("users"),
	}
}

func (s *userService) Create(ctx context.Context, email, name, password, role string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", apperrors.ErrInvalidInput)
	}
	if role == "" {
		role = models.RoleUser
	}
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role: %s", apperrors.ErrInvalidInput, role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Created user",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role))
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Debug("Login rejected: bad password", zap.String("user_id", user.ID.String()))
		return nil, apperrors.ErrUnauthenticated
	}
	if user.Banned {
		return nil, ErrUserBanned
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Ensure userService implements UserService at compile time.
var _ UserService = (*userService)(nil)
