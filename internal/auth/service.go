package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// MaxPasswordBytes is the bcrypt input limit.
const MaxPasswordBytes = 72

// AccountWriter stores new accounts.
type AccountWriter interface {
	CreateUser(ctx context.Context, account NewAccount) (User, error)
}

// Repository defines persistence operations for the auth module.
type Repository interface {
	AccountWriter
	FindByUsername(ctx context.Context, username string) (User, bool, error)
	FindByID(ctx context.Context, id int64) (User, bool, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	cost int
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string, cost int) (string, error) {
	if password == "" || len(password) > MaxPasswordBytes {
		return "", ErrInvalidRegistration
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CreateAccount validates and stores a new account with the given role.
func CreateAccount(ctx context.Context, repo AccountWriter, username, email, password string, role shared.Role, cost int) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return User{}, ErrInvalidRegistration
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return User{}, ErrInvalidRegistration
	}
	hash, err := HashPassword(password, cost)
	if err != nil {
		return User{}, err
	}
	return repo.CreateUser(ctx, NewAccount{Username: username, Email: email, PasswordHash: hash, Role: role})
}

// Register creates a customer account. Self-registration never grants staff roles.
func (s *Service) Register(ctx context.Context, username, email, password string) (User, error) {
	return CreateAccount(ctx, s.repo, username, email, password, shared.RoleUser, s.cost)
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, ok, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, shared.ErrInvalidCredentials
		}
		return User{}, err
	}
	return user, nil
}

// Me returns the profile of the signed-in user.
func (s *Service) Me(ctx context.Context, userID int64) (Profile, error) {
	user, ok, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrNotSignedIn
	}
	return ProfileOf(user), nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
