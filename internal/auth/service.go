package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
	"stock-scenario-engine/internal/database"
)

// Service implements registration, login with lockout, and token
// refresh on top of the user repository.
type Service struct {
	repo      *database.Repository
	jwt       *JWTManager
	passwords *PasswordManager
	cfg       config.AuthConfig
	logger    zerolog.Logger
}

// NewService creates the auth service
func NewService(repo *database.Repository, cfg config.AuthConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		jwt:       NewJWTManager(cfg.JWTSecret, cfg.AccessTokenDuration, cfg.RefreshTokenDuration),
		passwords: NewPasswordManager(DefaultBcryptCost, cfg.MinPasswordLength),
		cfg:       cfg,
		logger:    logger.With().Str("component", "AuthService").Logger(),
	}
}

// JWT exposes the token manager for middleware wiring
func (s *Service) JWT() *JWTManager {
	return s.jwt
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*database.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.passwords.ValidatePasswordStrength(req.Password); err != nil {
		return nil, ErrWeakPassword
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         database.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login verifies credentials and returns a token pair. Repeated
// failures lock the account for the configured duration.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if !s.passwords.VerifyPassword(req.Password, user.PasswordHash) {
		var lockUntil *time.Time
		if user.FailedLogins+1 >= s.cfg.MaxLoginAttempts {
			t := time.Now().Add(s.cfg.LockoutDuration)
			lockUntil = &t
			s.logger.Warn().Str("user_id", user.ID).Msg("account locked after repeated failures")
		}
		if recordErr := s.repo.RecordFailedLogin(ctx, user.ID, lockUntil); recordErr != nil {
			s.logger.Error().Err(recordErr).Msg("failed to record login failure")
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.ResetLoginAttempts(ctx, user.ID); err != nil {
		s.logger.Error().Err(err).Msg("failed to reset login attempts")
	}

	return s.jwt.GenerateTokenPair(UserClaims{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		IsAdmin: user.Role == database.RoleAdmin,
	})
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// Re-read the user so role changes and deletions take effect
	user, getErr := s.repo.GetUserByID(ctx, claims.UserID)
	if getErr != nil {
		return nil, getErr
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	return s.jwt.GenerateTokenPair(UserClaims{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		IsAdmin: user.Role == database.RoleAdmin,
	})
}
