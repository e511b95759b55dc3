package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
)

const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = time.Hour
)

// AuthConfig holds the token lifetimes used by AuthService.
type AuthConfig struct {
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// AuthService implements the credential lifecycle: registration, login,
// password change and reset, and session renewal.
type AuthService struct {
	store    ports.CredentialStore
	tokens   ports.TokenIssuer
	hasher   *PasswordHasher
	notifier ports.ResetNotifier
	cfg      AuthConfig
	now      func() time.Time
	log      zerolog.Logger
}

func NewAuthService(
	store ports.CredentialStore,
	tokens ports.TokenIssuer,
	hasher *PasswordHasher,
	notifier ports.ResetNotifier,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	return &AuthService{
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.AuthResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	_, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrUserExists
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.store.Create(ctx, &domain.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	token, err := s.tokens.Issue(created.ID, domain.PurposeSession, s.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user registered")
	return &domain.AuthResult{User: created.Public(), Token: token}, nil
}

// Login returns domain.ErrInvalidCredentials for an unknown email, an
// inactive account and a wrong password alike.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	user, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.CheckNone(password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	matched := s.hasher.Check(user.PasswordHash, password)
	if !user.IsActive || !matched {
		s.log.Debug().Str("user_id", user.ID).Bool("active", user.IsActive).Msg("login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("login: stamp last login: %w", err)
	}
	user.LastLoginAt = &now

	token, err := s.tokens.Issue(user.ID, domain.PurposeSession, s.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &domain.AuthResult{User: user.Public(), Token: token}, nil
}

// Refresh issues a fresh session token for a still-active subject.
func (s *AuthService) Refresh(ctx context.Context, subjectID string) (string, error) {
	user, err := s.activeUser(ctx, subjectID)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(user.ID, domain.PurposeSession, s.cfg.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	return token, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, subjectID, currentPassword, newPassword string) error {
	user, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("change password: %w", err)
	}

	if !s.hasher.Check(user.PasswordHash, currentPassword) {
		return domain.ErrInvalidCredentials
	}

	return s.setPassword(ctx, user.ID, newPassword)
}

// RequestPasswordReset never reveals whether email belongs to an account:
// an unknown email returns nil exactly like a known one.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("request password reset: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, domain.PurposePasswordReset, s.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Enqueue(ports.PasswordReset{
			UserID:    user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			Token:     token,
		})
	}
	return nil
}

func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Verify(token, domain.PurposePasswordReset)
	if err != nil {
		return err
	}

	user, err := s.store.FindByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("complete password reset: %w", err)
	}

	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	s.log.Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

// Logout has no server-side effect: tokens are stateless and stay valid
// until they expire.
func (s *AuthService) Logout(_ context.Context, subjectID string) error {
	s.log.Debug().Str("user_id", subjectID).Msg("logout acknowledged")
	return nil
}

func (s *AuthService) Profile(ctx context.Context, subjectID string) (*domain.User, error) {
	user, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("profile: %w", err)
	}
	return user.Public(), nil
}

func (s *AuthService) activeUser(ctx context.Context, subjectID string) (*domain.User, error) {
	user, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
