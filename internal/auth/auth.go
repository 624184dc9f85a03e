// Package auth issues and checks login sessions for local accounts.
//
// Passwords are stored as Argon2id hashes. A successful login yields an
// opaque bearer token; HTTP clients send it as "Authorization: Bearer ..."
// and the HTML pages carry it in the daycal_session cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"daycal/internal/model"
	"daycal/internal/store"
)

const CookieName = "daycal_session"

var (
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
	ErrNoToken            = errors.New("auth: no token provided")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID   string
	Username string
	Token    string
}

// Store is the persistence the service needs.
type Store interface {
	UserByName(ctx context.Context, username string) (model.User, error)
	CreateSession(ctx context.Context, token, userID string, ttl time.Duration) (model.Session, error)
	SessionUser(ctx context.Context, token string) (model.User, model.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Service authenticates users against Store.
type Service struct {
	store Store
	ttl   time.Duration
}

func NewService(st Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{store: st, ttl: ttl}
}

// Login checks the password and issues a new session.
func (s *Service) Login(ctx context.Context, username, password string) (model.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.Session{}, ErrInvalidCredentials
	}

	u, err := s.store.UserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		// Spend comparable time so unknown usernames are not cheaper.
		_, _ = VerifyPassword(password, dummyHash)
		return model.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("login: %w", err)
	}

	ok, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return model.Session{}, fmt.Errorf("login: stored hash for %q: %w", username, err)
	}
	if !ok {
		return model.Session{}, ErrInvalidCredentials
	}

	sess, err := s.store.CreateSession(ctx, uuid.NewString(), u.ID, s.ttl)
	if err != nil {
		return model.Session{}, fmt.Errorf("login: %w", err)
	}
	return sess, nil
}

// Authenticate resolves a token to an Identity.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}
	u, sess, err := s.store.SessionUser(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, fmt.Errorf("authenticate: %w", err)
	}
	return Identity{UserID: u.ID, Username: u.Username, Token: sess.Token}, nil
}

// Logout drops the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// dummyHash is a valid Argon2id hash of a random string.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=4$c29tZXNhbHRzb21lc2FsdA$R1cnBRlD0XeKyMeFNh2Gp7tmmLDwdxGhDodLrjG5Xh4"
