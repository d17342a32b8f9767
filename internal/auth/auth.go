// Package auth handles accounts, login sessions and request identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MikeSquared-Agency/parley/internal/store"
)

const BcryptCost = 10

var (
	ErrMissingFields      = errors.New("email and password are required")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("unauthorized")
)

// User is the identity attached to an authenticated request.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name,omitempty"`
}

func fromStore(u store.User) User {
	return User{ID: u.ID, Email: u.Email, Name: u.Name}
}

type Store interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (store.User, error)
	UserByEmail(ctx context.Context, email string) (store.User, error)
	CreateSession(ctx context.Context, userID uuid.UUID, ttl time.Duration) (store.Session, error)
	SessionUser(ctx context.Context, token uuid.UUID) (store.User, error)
	DeleteSession(ctx context.Context, token uuid.UUID) error
}

type Service struct {
	store Store
	ttl   time.Duration
	cost  int
}

func NewService(s Store, sessionTTL time.Duration) *Service {
	return &Service{store: s, ttl: sessionTTL, cost: BcryptCost}
}

func (a *Service) Signup(ctx context.Context, email, password, name string) (User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return User{}, ErrMissingFields
	}
	if _, err := a.store.UserByEmail(ctx, email); err == nil {
		return User{}, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := a.store.CreateUser(ctx, email, name, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return User{}, ErrUserExists
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return fromStore(u), nil
}

// Login checks credentials and opens a new session.
func (a *Service) Login(ctx context.Context, email, password string) (store.Session, User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.Session{}, User{}, ErrMissingFields
	}
	u, err := a.store.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.Session{}, User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Session{}, User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return store.Session{}, User{}, ErrInvalidCredentials
	}
	sess, err := a.store.CreateSession(ctx, u.ID, a.ttl)
	if err != nil {
		return store.Session{}, User{}, fmt.Errorf("create session: %w", err)
	}
	return sess, fromStore(u), nil
}

// Logout ends the session. Unknown tokens are not an error.
func (a *Service) Logout(ctx context.Context, token string) error {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil
	}
	return a.store.DeleteSession(ctx, id)
}

// Authenticate resolves a session token to its user.
func (a *Service) Authenticate(ctx context.Context, token string) (User, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return User{}, ErrUnauthenticated
	}
	u, err := a.store.SessionUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrUnauthenticated
	}
	if err != nil {
		return User{}, fmt.Errorf("resolve session: %w", err)
	}
	return fromStore(u), nil
}
