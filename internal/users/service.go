package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service is the user directory: registration, credential checks and profile
// lookups by identity token or id.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a user service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "users")),
	}
}

// Register creates a user with a bcrypt password hash and a freshly issued
// identity token. The identity token is immutable for the life of the user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return User{}, fmt.Errorf("name and email are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.Create(ctx, User{
		Name:          name,
		Email:         email,
		Image:         strings.TrimSpace(req.Image),
		PasswordHash:  string(hash),
		IdentityToken: uuid.NewString(),
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate verifies email/password and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByIdentityToken resolves the caller's user record from the identity
// provider token. Every authenticated operation starts here.
func (s *Service) GetByIdentityToken(ctx context.Context, identityToken string) (User, error) {
	if strings.TrimSpace(identityToken) == "" {
		return User{}, ErrUserNotFound
	}
	return s.store.GetByIdentityToken(ctx, identityToken)
}

// GetByID looks a user up by id for profile joins.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all registered users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}
