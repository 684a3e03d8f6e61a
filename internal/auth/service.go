package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careboard/internal/domain"
)

// ErrUserNotFound is returned when a token names a user that no longer exists.
var ErrUserNotFound = errors.New("auth: user not found")

// Tokens is an access/refresh token pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Service provides sign-in and token operations.
type Service struct {
	userRepo   domain.UserRepository
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a new auth service.
func NewService(userRepo domain.UserRepository, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		userRepo:   userRepo,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// EnsureUser returns the user with email, creating it on first sight.
func (s *Service) EnsureUser(ctx context.Context, email, name string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("auth.EnsureUser: %w", err)
	}

	user, err = domain.NewUser(email, name)
	if err != nil {
		return nil, fmt.Errorf("auth.EnsureUser: %w", err)
	}

	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, domain.ErrConflict) {
		// Created concurrently by another request.
		existing, getErr := s.userRepo.GetByEmail(ctx, email)
		if getErr != nil {
			return nil, fmt.Errorf("auth.EnsureUser: %w", getErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth.EnsureUser: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Msg("auth: user created")
	return user, nil
}

// SignIn resolves the user for a verified identity and issues tokens.
func (s *Service) SignIn(ctx context.Context, email, name string) (*domain.User, Tokens, error) {
	user, err := s.EnsureUser(ctx, email, name)
	if err != nil {
		return nil, Tokens{}, fmt.Errorf("auth.SignIn: %w", err)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, Tokens{}, fmt.Errorf("auth.SignIn: %w", err)
	}
	return user, tokens, nil
}

// RefreshToken validates a refresh token and issues a new access token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	if claims.TokenType != tokenTypeRefresh {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: invalid user id: %w", err)
	}

	// Verify the user still exists.
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrUserNotFound)
	}

	newAccess, err := IssueAccessToken(s.jwtSecret, user.ID, user.Email, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	return newAccess, nil
}

// GetUser returns a user by ID (for middleware use).
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.GetUser: %w", err)
	}

	return user, nil
}

// NewState issues an OAuth state parameter valid for ttl.
func (s *Service) NewState(ttl time.Duration) (string, error) {
	return IssueStateToken(s.jwtSecret, ttl)
}

// CheckState validates an OAuth state parameter.
func (s *Service) CheckState(state string) error {
	return ValidateStateToken(s.jwtSecret, state)
}

func (s *Service) issuePair(user *domain.User) (Tokens, error) {
	access, err := IssueAccessToken(s.jwtSecret, user.ID, user.Email, s.accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := IssueRefreshToken(s.jwtSecret, user.ID, user.Email, s.refreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}
